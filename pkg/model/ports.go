package model

import "fmt"

// ReconcilePorts rebuilds a node's port list after its code changed.
// Existing ports are matched by original name (then by display name for
// ports that never had one) so user renames, ids and connections survive;
// unmatched names get fresh ports.
func ReconcilePorts(existing []*Port, names []string, dir Direction, nodeID string) []*Port {
	ports := make([]*Port, 0, len(names))
	used := make(map[string]bool)

	for i, name := range names {
		match := findUnused(existing, used, func(p *Port) bool {
			return p.OriginalName == name
		})
		if match == nil {
			match = findUnused(existing, used, func(p *Port) bool {
				return p.OriginalName == "" && p.Name == name
			})
		}

		if match != nil {
			used[match.ID] = true
			p := *match
			p.OriginalName = name
			if p.Name == "" {
				p.Name = name
			}
			p.Direction = dir
			p.NodeID = nodeID
			ports = append(ports, &p)
			continue
		}

		ports = append(ports, newPort(nodeID, dir, name, i))
	}

	return ports
}

func findUnused(ports []*Port, used map[string]bool, pred func(*Port) bool) *Port {
	for _, p := range ports {
		if p != nil && !used[p.ID] && pred(p) {
			return p
		}
	}
	return nil
}

// newPort creates a port whose display and original names are both name
func newPort(nodeID string, dir Direction, name string, index int) *Port {
	prefix, fallback := "port_in", fmt.Sprintf("param%d", index)
	if dir == DirectionOutput {
		prefix, fallback = "port_out", fmt.Sprintf("output%d", index+1)
	}
	return &Port{
		ID:           fmt.Sprintf("%s_%s_%s_%s", prefix, nodeID, portIDBase(name, fallback), shortID(6)),
		Name:         name,
		OriginalName: name,
		NodeID:       nodeID,
		Direction:    dir,
	}
}

func portsFromNames(nodeID string, dir Direction, names []string) []*Port {
	ports := make([]*Port, 0, len(names))
	for i, name := range names {
		ports = append(ports, newPort(nodeID, dir, name, i))
	}
	return ports
}
