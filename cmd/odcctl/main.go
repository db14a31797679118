package main

import (
	"github.com/o2control/odc/cmd/odcctl/cmd"
	"github.com/o2control/odc/internal/logging"
)

func main() {
	logging.ConfigureCommandLineLogging()
	cmd.Execute()
}
