package model

// NodeType is the rendering role of a topology node.
type NodeType string

// Topology node types.
const (
	NodeTypeGroup   NodeType = "group"
	NodeTypeInput   NodeType = "input"
	NodeTypeDefault NodeType = "default"
)

// Position is a node offset. Child nodes are positioned relative to their parent.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is one node of the queue topology graph.
type GraphNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Label    string   `json:"label"`
	Position Position `json:"position"`

	// Set on namespace groups only.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// Set on local queues only; the parent is the namespace group.
	ParentID string `json:"parent_id,omitempty"`
	Extent   string `json:"extent,omitempty"`

	Namespace    string `json:"namespace,omitempty"`
	ClusterQueue string `json:"cluster_queue,omitempty"`
}

// GraphEdge links a local queue node to its cluster queue node.
type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Marker string `json:"marker"`
}

// Graph is the positioned queue topology.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NodesOfType returns the nodes with the given type, in graph order.
func (g *Graph) NodesOfType(t NodeType) []GraphNode {
	out := make([]GraphNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
