package model

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph marks review input that cannot form a consistent
// architecture. Callers surface the detail, since it aids correction.
var ErrInvalidGraph = errors.New("invalid graph")

// ReviewNode is an externally supplied graph node, typed "agent" or "tool".
type ReviewNode struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Label    string            `json:"label"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReviewEdge is an externally supplied graph edge between node ids.
type ReviewEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// BuildArchitecture reconstructs an architecture from typed nodes and edges.
// Agent nodes keep their node id; tool nodes are addressed by name, so edge
// endpoints pointing at a tool node are remapped to the tool's name. Unknown
// node types and dangling edge endpoints are validation errors.
func BuildArchitecture(nodes []ReviewNode, edges []ReviewEdge) (*AgentNetworkArchitecture, error) {
	arch := &AgentNetworkArchitecture{}
	endpoint := make(map[string]string, len(nodes))

	for _, n := range nodes {
		name := n.Label
		if name == "" {
			name = n.ID
		}
		switch n.Type {
		case "agent":
			arch.Agents = append(arch.Agents, Agent{
				ID:   n.ID,
				Name: name,
				Role: n.Metadata["role"],
			})
			endpoint[n.ID] = n.ID
		case "tool":
			arch.Tools = append(arch.Tools, Tool{
				Name:        name,
				Description: n.Metadata["description"],
			})
			endpoint[n.ID] = name
		default:
			return nil, fmt.Errorf("%w: node %q has unknown type %q", ErrInvalidGraph, n.ID, n.Type)
		}
	}

	for _, e := range edges {
		src, ok := endpoint[e.Source]
		if !ok {
			return nil, fmt.Errorf("%w: edge source %q references no node", ErrInvalidGraph, e.Source)
		}
		dst, ok := endpoint[e.Target]
		if !ok {
			return nil, fmt.Errorf("%w: edge target %q references no node", ErrInvalidGraph, e.Target)
		}
		arch.Connections = append(arch.Connections, Connection{
			Source: src,
			Target: dst,
			Label:  e.Label,
		})
	}

	return arch, nil
}
