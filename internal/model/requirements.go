package model

// ExtractRequirements infers, from a parsed TopoModel, the AgentGroupInfo
// needed to drive Submit. Zones are read as declared on the model; if
// none were declared, one zone per agent-group name is derived as a
// fallback for topologies that omit zone declarations.
func ExtractRequirements(m *TopoModel) map[string]*AgentGroupInfo {
	groups := map[string]*AgentGroupInfo{}

	for _, c := range m.Collections {
		info, ok := groups[c.AgentGroup]
		if !ok {
			info = &AgentGroupInfo{Name: c.AgentGroup, Zone: c.Zone, NumCores: c.NCores}
			groups[c.AgentGroup] = info
		}
		info.NumAgents += c.NOriginal
		if c.NMin != nil {
			if info.MinAgents == nil {
				v := 0
				info.MinAgents = &v
			}
			*info.MinAgents += *c.NMin
		}
		if c.NumTasks > info.NumSlots {
			info.NumSlots = c.NumTasks
		}
		if c.NCores > info.NumCores {
			info.NumCores = c.NCores
		}
	}

	if len(m.Zones) == 0 {
		for name, info := range groups {
			m.Zones[name] = []ZoneGroup{{N: info.NumAgents, NCores: info.NumCores, AgentGroup: name}}
		}
	}

	return groups
}
