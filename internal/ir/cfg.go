package ir

import "github.com/minuteman3/ssa-optimiser/internal/graph"

// BuildGraph constructs the control-flow graph of c: one node per block,
// one edge per (block, successor) pair. Grounded on the original's
// util.py build_graph.
func BuildGraph(c *Code) (*graph.Graph, error) {
	g := graph.New()
	for _, b := range c.Blocks {
		g.AddNodes(b.Name)
	}
	for _, b := range c.Blocks {
		for _, next := range b.Next {
			if !g.Has(next) {
				return nil, &Error{Kind: MalformedCfg, Msg: "successor mentions unknown block " + next, Block: b.Name}
			}
			if err := g.AddEdges(graph.Edge{From: b.Name, To: next}); err != nil {
				return nil, err
			}
		}
	}
	entry, err := c.EntryBlock()
	if err != nil {
		return nil, err
	}
	if err := g.SetRoot(entry); err != nil {
		return nil, err
	}
	return g, nil
}
