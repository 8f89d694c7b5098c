package briefing

import (
	"fmt"
	"sort"
)

// RoutingFunc selects a decision label from the current state. It must be a
// pure function: deterministic, no side effects.
type RoutingFunc func(state *State) Decision

// ConditionalEdge routes to one of several successors based on a decision
// label. Targets must cover every label the routing function can return;
// an unmapped decision at runtime fails the session.
type ConditionalEdge struct {
	Route   RoutingFunc
	Targets map[Decision]string
}

// Node is a single step in the graph. A node has exactly one of: a static
// successor (Next), a conditional edge (Branch), or terminal position
// (neither set).
type Node struct {
	Name   string
	Stage  Stage
	Next   string
	Branch *ConditionalEdge
}

// Terminal reports whether the node ends the workflow.
func (n *Node) Terminal() bool {
	return n.Next == "" && n.Branch == nil
}

// Graph is an immutable, validated workflow definition. Cycles are allowed
// (review loops route back to earlier nodes); the executor's step limit
// bounds them.
type Graph struct {
	nodes map[string]*Node
	entry string
}

// NewGraph validates and builds a graph. Validation fails fast if any node
// name is duplicated, any edge or decision label references an undeclared
// node, or a node lacks a stage.
func NewGraph(entry string, nodes []*Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph requires at least one node")
	}
	byName := make(map[string]*Node, len(nodes))
	for _, node := range nodes {
		if node.Name == "" {
			return nil, fmt.Errorf("node name required")
		}
		if node.Stage == nil {
			return nil, fmt.Errorf("node %q requires a stage", node.Name)
		}
		if _, exists := byName[node.Name]; exists {
			return nil, fmt.Errorf("duplicate node name %q", node.Name)
		}
		byName[node.Name] = node
	}
	if entry == "" {
		return nil, fmt.Errorf("entry node required")
	}
	if _, ok := byName[entry]; !ok {
		return nil, fmt.Errorf("entry node %q not declared", entry)
	}
	for _, node := range nodes {
		if node.Next != "" && node.Branch != nil {
			return nil, fmt.Errorf("node %q has both a static and a conditional edge", node.Name)
		}
		if node.Next != "" {
			if _, ok := byName[node.Next]; !ok {
				return nil, fmt.Errorf("node %q edge to undeclared node %q", node.Name, node.Next)
			}
		}
		if node.Branch != nil {
			if node.Branch.Route == nil {
				return nil, fmt.Errorf("node %q conditional edge requires a routing function", node.Name)
			}
			if len(node.Branch.Targets) == 0 {
				return nil, fmt.Errorf("node %q conditional edge requires targets", node.Name)
			}
			for decision, target := range node.Branch.Targets {
				if _, ok := byName[target]; !ok {
					return nil, fmt.Errorf("node %q decision %q routes to undeclared node %q",
						node.Name, decision, target)
				}
			}
		}
	}
	return &Graph{nodes: byName, entry: entry}, nil
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// Len returns the number of declared nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeNames returns the sorted names of all declared nodes.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nextNode resolves the successor of a node for the given state. It returns
// ok=false for terminal nodes.
func (g *Graph) nextNode(node *Node, state *State) (string, bool, error) {
	if node.Terminal() {
		return "", false, nil
	}
	if node.Next != "" {
		return node.Next, true, nil
	}
	decision := node.Branch.Route(state)
	target, ok := node.Branch.Targets[decision]
	if !ok {
		return "", false, fmt.Errorf("node %q returned unmapped decision %q", node.Name, decision)
	}
	return target, true, nil
}
