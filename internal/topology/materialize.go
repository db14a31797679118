package topology

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/occontext"
)

// Source names exactly one of the three ways a topology can be supplied
// to Activate/Run/Update.
type Source struct {
	File            string
	InlineContent   string
	GeneratorScript string
}

func (s Source) count() int {
	n := 0
	if s.File != "" {
		n++
	}
	if s.InlineContent != "" {
		n++
	}
	if s.GeneratorScript != "" {
		n++
	}
	return n
}

// Materialize resolves a Source into a concrete file path, writing
// generated or inline content to a temp file under a unique temp
// directory. scriptTimeout bounds generator script execution; it must
// be at least the caller's remaining request budget.
func Materialize(ctx *occontext.Context, src Source, scriptTimeout time.Duration) (string, error) {
	if src.count() != 1 {
		return "", occerrors.New(occerrors.TopologyFailed, "exactly one of file, inlineContent, or generatorScript must be supplied")
	}

	if src.File != "" {
		if _, err := os.Stat(src.File); err != nil {
			return "", occerrors.Newf(occerrors.TopologyFailed, "topology file %q is not accessible: %v", src.File, err)
		}
		return src.File, nil
	}

	content := src.InlineContent
	if src.GeneratorScript != "" {
		out, err := runGenerator(ctx, src.GeneratorScript, scriptTimeout)
		if err != nil {
			return "", occerrors.Newf(occerrors.TopologyFailed, "topology generator script failed: %v", err)
		}
		content = out
	}

	dir, err := os.MkdirTemp("", "odc-topo-")
	if err != nil {
		return "", occerrors.Newf(occerrors.TopologyFailed, "failed to create temp dir: %v", err)
	}
	path := filepath.Join(dir, uuid.NewString()+".topo")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", occerrors.Newf(occerrors.TopologyFailed, "failed to write topology file: %v", err)
	}
	return path, nil
}

func runGenerator(ctx *occontext.Context, script string, timeout time.Duration) (string, error) {
	cctx, cancel := occontext.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		ctx.Log.WithError(err).WithField("stderr", stderr.String()).Warn("topology generator script exited non-zero")
		return "", err
	}
	return stdout.String(), nil
}
