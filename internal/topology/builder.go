// Package topology lays out namespaces, local queues, and cluster queues as a
// positioned graph.
package topology

import "github.com/kubeadapt/kueue-observer/pkg/model"

// Layout constants, in graph units.
const (
	NamespaceSpacing    = 350
	NamespaceHeight     = 50
	LocalQueueWidth     = 200
	LocalQueueInset     = 5
	ClusterQueueSpacing = 200
	ClusterQueueRow     = 200
)

// EdgeMarker is the closed-arrow edge end marker.
const EdgeMarker = "arrowclosed"

// ExtentParent confines a child node to its parent.
const ExtentParent = "parent"

// NamespaceNodeID returns the id of a namespace group node.
func NamespaceNodeID(namespace string) string { return "ns-" + namespace }

// ClusterQueueNodeID returns the id of a cluster queue node.
func ClusterQueueNodeID(name string) string { return "cq-" + name }

// LocalQueueNodeID returns the id of a local queue node.
func LocalQueueNodeID(namespace, name string) string { return "lq-" + namespace + "/" + name }

// EdgeID returns the id of the edge from source to target.
func EdgeID(source, target string) string { return source + "->" + target }

// Build lays out the given local queues. It is a pure function of its input:
// identical lists yield identical graphs, and ids derive from names only, so
// a queue keeps its node id across polls.
//
// Node order: namespace groups, then cluster queues, then local queues.
// Namespaces and cluster queues are ordered by first appearance.
func Build(queues []model.LocalQueueInfo) model.Graph {
	namespaces := Namespaces(queues)
	clusterQueues := ClusterQueues(queues)
	perNamespace := make(map[string]int, len(namespaces))
	for _, q := range queues {
		perNamespace[q.Namespace]++
	}

	g := model.Graph{
		Nodes: make([]model.GraphNode, 0, len(namespaces)+len(clusterQueues)+len(queues)),
		Edges: make([]model.GraphEdge, 0, len(queues)),
	}

	for i, ns := range namespaces {
		g.Nodes = append(g.Nodes, model.GraphNode{
			ID:        NamespaceNodeID(ns),
			Type:      model.NodeTypeGroup,
			Label:     ns,
			Position:  model.Position{X: float64(i * NamespaceSpacing), Y: 0},
			Width:     float64(perNamespace[ns] * LocalQueueWidth),
			Height:    NamespaceHeight,
			Namespace: ns,
		})
	}

	for i, cq := range clusterQueues {
		g.Nodes = append(g.Nodes, model.GraphNode{
			ID:           ClusterQueueNodeID(cq),
			Type:         model.NodeTypeDefault,
			Label:        cq,
			Position:     model.Position{X: float64(i * ClusterQueueSpacing), Y: ClusterQueueRow},
			ClusterQueue: cq,
		})
	}

	index := make(map[string]int, len(namespaces))
	for _, q := range queues {
		idx := index[q.Namespace]
		index[q.Namespace]++

		id := LocalQueueNodeID(q.Namespace, q.Name)
		g.Nodes = append(g.Nodes, model.GraphNode{
			ID:           id,
			Type:         model.NodeTypeInput,
			Label:        q.Name,
			Position:     model.Position{X: float64(LocalQueueInset + idx*LocalQueueWidth), Y: LocalQueueInset},
			ParentID:     NamespaceNodeID(q.Namespace),
			Extent:       ExtentParent,
			Namespace:    q.Namespace,
			ClusterQueue: q.ClusterQueue,
		})

		target := ClusterQueueNodeID(q.ClusterQueue)
		g.Edges = append(g.Edges, model.GraphEdge{
			ID:     EdgeID(id, target),
			Source: id,
			Target: target,
			Marker: EdgeMarker,
		})
	}

	return g
}

// ClusterQueues returns the distinct cluster queues referenced by queues, in
// first-appearance order.
func ClusterQueues(queues []model.LocalQueueInfo) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range queues {
		if _, ok := seen[q.ClusterQueue]; ok {
			continue
		}
		seen[q.ClusterQueue] = struct{}{}
		out = append(out, q.ClusterQueue)
	}
	return out
}

// Namespaces returns the distinct namespaces of queues, in first-appearance order.
func Namespaces(queues []model.LocalQueueInfo) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range queues {
		if _, ok := seen[q.Namespace]; ok {
			continue
		}
		seen[q.Namespace] = struct{}{}
		out = append(out, q.Namespace)
	}
	return out
}
