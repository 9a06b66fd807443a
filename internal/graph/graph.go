// Package graph builds and evaluates a static computation graph. Output
// shapes are inferred when a node is added, so wiring mistakes surface during
// construction rather than on the first run.
package graph

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region graph

// Graph is an append-only list of nodes. Insertion order is a valid
// topological order because a node can only consume nodes added before it.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
	inputs []*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// #endregion graph

// #region construction

// Input declares a graph input.
func (g *Graph) Input(spec InputSpec) (*Node, error) {
	if err := g.reserve(spec.Name); err != nil {
		return nil, err
	}
	n := &Node{Name: spec.Name, Shape: spec.Shape.Clone()}
	g.add(n)
	g.inputs = append(g.inputs, n)
	return n, nil
}

// Apply adds a node computing op over inputs.
func (g *Graph) Apply(name string, op Op, inputs ...*Node) (*Node, error) {
	if err := g.reserve(name); err != nil {
		return nil, err
	}
	shapes := make([]shape.Shape, len(inputs))
	for i, in := range inputs {
		if g.byName[in.Name] != in {
			return nil, fmt.Errorf("node %s: input %s belongs to another graph", name, in.Name)
		}
		shapes[i] = in.Shape
	}
	out, err := op.OutputShape(shapes)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", name, op.Kind(), err)
	}
	n := &Node{Name: name, Op: op, Inputs: inputs, Shape: out}
	g.add(n)
	return n, nil
}

func (g *Graph) reserve(name string) error {
	if name == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if _, exists := g.byName[name]; exists {
		return fmt.Errorf("duplicate node name %q", name)
	}
	return nil
}

func (g *Graph) add(n *Node) {
	g.nodes = append(g.nodes, n)
	g.byName[n.Name] = n
}

// #endregion construction

// #region lookup

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Inputs returns the declared inputs in declaration order.
func (g *Graph) Inputs() []InputSpec {
	specs := make([]InputSpec, len(g.inputs))
	for i, n := range g.inputs {
		specs[i] = InputSpec{Name: n.Name, Shape: n.Shape.Clone()}
	}
	return specs
}

// Params collects learned weights from every parameterized op. A weight
// shared by several nodes is returned once.
func (g *Graph) Params() []*Param {
	seen := make(map[*Param]bool)
	var out []*Param
	for _, n := range g.nodes {
		p, ok := n.Op.(Parameterized)
		if !ok {
			continue
		}
		for _, param := range p.Params() {
			if seen[param] {
				continue
			}
			seen[param] = true
			out = append(out, param)
		}
	}
	return out
}

// #endregion lookup

// #region run

// Run evaluates the fetched nodes. Only ancestors of fetched nodes are
// computed, and only their inputs need to be fed.
func (g *Graph) Run(ctx context.Context, feeds map[string]*tensor.Tensor, mode Mode, fetch ...string) (map[string]*tensor.Tensor, error) {
	needed := make(map[*Node]bool)
	var mark func(n *Node)
	mark = func(n *Node) {
		if needed[n] {
			return
		}
		needed[n] = true
		for _, in := range n.Inputs {
			mark(in)
		}
	}
	for _, name := range fetch {
		n, ok := g.byName[name]
		if !ok {
			return nil, fmt.Errorf("fetch: unknown node %q", name)
		}
		mark(n)
	}

	values := make(map[*Node]*tensor.Tensor, len(needed))
	for _, n := range g.nodes {
		if !needed[n] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n.IsInput() {
			v, ok := feeds[n.Name]
			if !ok {
				return nil, fmt.Errorf("missing feed for input %q", n.Name)
			}
			if !n.Shape.Compatible(v.Shape()) {
				return nil, shape.Mismatch(n.Name, "feed does not match declared input", n.Shape, v.Shape())
			}
			values[n] = v
			continue
		}
		args := make([]*tensor.Tensor, len(n.Inputs))
		for i, in := range n.Inputs {
			args[i] = values[in]
		}
		out, err := n.Op.Forward(ctx, args, mode)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", n.Name, n.Op.Kind(), err)
		}
		if !n.Shape.Compatible(out.Shape()) {
			return nil, shape.Mismatch(n.Name, "op produced a value inconsistent with its inferred shape", n.Shape, out.Shape())
		}
		values[n] = out
	}

	result := make(map[string]*tensor.Tensor, len(fetch))
	for _, name := range fetch {
		result[name] = values[g.byName[name]]
	}
	return result, nil
}

// #endregion run
