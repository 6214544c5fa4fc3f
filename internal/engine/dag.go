package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
	apperrors "github.com/alexisbeaulieu97/ccreconcile/pkg/errors"
)

// Node is one config item in the reference graph.
type Node struct {
	ID        string
	Index     int
	DependsOn []*Node
}

// Graph records which items reference other items of the same pass.
// References follow the site hierarchy, so edges always point from a
// shorter path to a longer one and the graph cannot contain a cycle.
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts an item as a vertex.
func (g *Graph) AddNode(id string, index int) (*Node, error) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[id]; exists {
		return nil, fmt.Errorf("duplicate item %q", id)
	}
	node := &Node{ID: id, Index: index}
	g.Nodes[id] = node
	return node, nil
}

// AddEdge records that to depends on from.
func (g *Graph) AddEdge(from, to string) error {
	source, ok := g.Nodes[from]
	if !ok {
		return fmt.Errorf("unknown item %q", from)
	}
	target, ok := g.Nodes[to]
	if !ok {
		return fmt.Errorf("unknown item %q", to)
	}
	target.DependsOn = append(target.DependsOn, source)
	return nil
}

func nodeID(spec schema.Spec, key string) string {
	if spec.KeyField().CaseInsensitive {
		key = strings.ToLower(key)
	}
	return spec.Kind + "/" + key
}

// buildGraph links items to the same-kind items they reference. References
// to objects outside the pass are left to the controller.
func buildGraph(items []work) (*Graph, error) {
	graph := NewGraph()
	for _, w := range items {
		if _, err := graph.AddNode(nodeID(w.item.Spec, w.item.Key()), w.item.Index()); err != nil {
			return nil, err
		}
	}
	for _, w := range items {
		child := nodeID(w.item.Spec, w.item.Key())
		for _, ref := range w.res.References(w.item.Document.Values) {
			parent := nodeID(w.item.Spec, ref)
			if _, ok := graph.Nodes[parent]; !ok || parent == child {
				continue
			}
			if err := graph.AddEdge(parent, child); err != nil {
				return nil, err
			}
		}
	}
	return graph, nil
}

// orderViolations reports items listed on the wrong side of an item they
// reference. Creating requires parents first; deleting requires children first.
func orderViolations(graph *Graph, deleting bool) []apperrors.Violation {
	var vs []apperrors.Violation
	ids := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return graph.Nodes[ids[i]].Index < graph.Nodes[ids[j]].Index })

	for _, id := range ids {
		child := graph.Nodes[id]
		for _, parent := range child.DependsOn {
			switch {
			case !deleting && parent.Index > child.Index:
				vs = append(vs, apperrors.Violation{
					Index:   child.Index,
					Message: fmt.Sprintf("%s must be listed after %s (config[%d])", child.ID, parent.ID, parent.Index),
				})
			case deleting && parent.Index < child.Index:
				vs = append(vs, apperrors.Violation{
					Index:   parent.Index,
					Message: fmt.Sprintf("%s must be listed after %s (config[%d]) when deleting", parent.ID, child.ID, child.Index),
				})
			}
		}
	}
	return vs
}
