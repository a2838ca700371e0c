// Package graph implements the directed-graph abstraction the optimization
// pipeline builds its CFG analyses on: predecessors, naive iterative
// dominators, dominator trees, dominance frontiers, reversal, reachability,
// and the control-dependence graph.
//
// Grounded on original_source/cs4071_ssa_optimiser/graphs.py. The naive
// quadratic dominators algorithm is deliberate, not a missed optimization:
// the source comments that Lengauer-Tarjan was "too much effort", and the
// spec carries that choice forward rather than asking for something
// asymptotically better.
package graph

import (
	"sort"

	"golang.org/x/exp/maps"
)

type edgeKey struct{ from, to string }

// Graph is a directed graph over string-named nodes with an optional root.
// Node and edge insertion is idempotent; dominator results are memoized
// until the next mutation.
type Graph struct {
	nodeOrder []string
	nodeSeen  map[string]bool
	succ      map[string][]string
	edgeSeen  map[edgeKey]bool
	root      string
	hasRoot   bool

	domSets map[string]map[string]bool // memoized Dominators() result
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodeSeen: make(map[string]bool),
		succ:     make(map[string][]string),
		edgeSeen: make(map[edgeKey]bool),
	}
}

func (g *Graph) invalidate() { g.domSets = nil }

// AddNodes adds nodes to the graph, ignoring ones that already exist.
func (g *Graph) AddNodes(names ...string) {
	for _, n := range names {
		if g.nodeSeen[n] {
			continue
		}
		g.nodeSeen[n] = true
		g.nodeOrder = append(g.nodeOrder, n)
		g.invalidate()
	}
}

// Has reports whether a node exists in the graph.
func (g *Graph) Has(name string) bool { return g.nodeSeen[name] }

// Nodes returns all node names in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodeOrder))
	copy(out, g.nodeOrder)
	return out
}

// Edge is a directed edge, from -> to.
type Edge struct{ From, To string }

// AddEdges adds edges, ignoring duplicates and silently dropping
// self-edges. Fails with Error{Kind: UnknownNode} if either endpoint of any
// edge does not exist in the graph.
func (g *Graph) AddEdges(edges ...Edge) error {
	for _, e := range edges {
		if !g.nodeSeen[e.From] || !g.nodeSeen[e.To] {
			return errUnknownNode("cannot add edge (%s -> %s): endpoint missing", e.From, e.To)
		}
		if e.From == e.To {
			continue
		}
		k := edgeKey{e.From, e.To}
		if g.edgeSeen[k] {
			continue
		}
		g.edgeSeen[k] = true
		g.succ[e.From] = append(g.succ[e.From], e.To)
		g.invalidate()
	}
	return nil
}

// RemoveEdges removes edges if present; a no-op for edges that aren't.
func (g *Graph) RemoveEdges(edges ...Edge) error {
	for _, e := range edges {
		if !g.nodeSeen[e.From] || !g.nodeSeen[e.To] {
			return errUnknownNode("cannot remove edge (%s -> %s): endpoint missing", e.From, e.To)
		}
		k := edgeKey{e.From, e.To}
		if !g.edgeSeen[k] {
			continue
		}
		delete(g.edgeSeen, k)
		succs := g.succ[e.From]
		for i, s := range succs {
			if s == e.To {
				g.succ[e.From] = append(succs[:i], succs[i+1:]...)
				break
			}
		}
		g.invalidate()
	}
	return nil
}

// Succ returns the ordered successor list of a node.
func (g *Graph) Succ(node string) []string {
	out := make([]string, len(g.succ[node]))
	copy(out, g.succ[node])
	return out
}

// Pred returns the set of immediate predecessors of node, in the stable
// order of the graph's own node insertion order.
func (g *Graph) Pred(node string) []string {
	var preds []string
	for _, k := range g.nodeOrder {
		for _, s := range g.succ[k] {
			if s == node {
				preds = append(preds, k)
				break
			}
		}
	}
	return preds
}

// SetRoot designates node as the graph's root. Fails if node is unknown.
func (g *Graph) SetRoot(node string) error {
	if !g.nodeSeen[node] {
		return errUnknownNode("cannot set root to node %q not in graph", node)
	}
	if node != g.root || !g.hasRoot {
		g.invalidate()
	}
	g.root = node
	g.hasRoot = true
	return nil
}

// Root returns the current root and whether one has been set.
func (g *Graph) Root() (string, bool) { return g.root, g.hasRoot }

// FindRootCandidates returns every node with no predecessors, in node
// insertion order.
func (g *Graph) FindRootCandidates() []string {
	hasPred := make(map[string]bool)
	for _, froms := range g.succ {
		for _, to := range froms {
			hasPred[to] = true
		}
	}
	var candidates []string
	for _, n := range g.nodeOrder {
		if !hasPred[n] {
			candidates = append(candidates, n)
		}
	}
	return candidates
}

// CheckRoot ensures a root is set, inferring one from FindRootCandidates
// when unambiguous. Fails with Error{Kind: NoRoot} when no root is set and
// none can be inferred.
func (g *Graph) CheckRoot() error {
	if g.hasRoot {
		return nil
	}
	candidates := g.FindRootCandidates()
	if len(candidates) == 1 {
		return g.SetRoot(candidates[0])
	}
	return errNoRoot("requires a root node to be set and no suitable candidate could be inferred (%d candidates)", len(candidates))
}

func (g *Graph) allNodesSet() map[string]bool {
	s := make(map[string]bool, len(g.nodeOrder))
	for _, n := range g.nodeOrder {
		s[n] = true
	}
	return s
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func domMapsEqual(a, b map[string]map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !setsEqual(va, vb) {
			return false
		}
	}
	return true
}

func cloneDomMap(m map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for k, v := range m {
		out[k] = maps.Clone(v)
	}
	return out
}

// Dominators computes the naive iterative-fixed-point dominator sets:
// dom[root] = {root}; dom[n] = {n} ∪ ⋂ dom[p] for p ∈ pred(n), repeated
// until stable. Results are memoized until the next mutation.
func (g *Graph) Dominators() (map[string]map[string]bool, error) {
	if g.domSets != nil {
		return g.domSets, nil
	}
	if err := g.CheckRoot(); err != nil {
		return nil, err
	}
	all := g.allNodesSet()
	dominators := make(map[string]map[string]bool, len(g.nodeOrder))
	dominators[g.root] = map[string]bool{g.root: true}
	for _, n := range g.nodeOrder {
		if n == g.root {
			continue
		}
		dominators[n] = maps.Clone(all)
	}

	for {
		prev := cloneDomMap(dominators)
		for _, n := range g.nodeOrder {
			if n == g.root {
				continue
			}
			predom := maps.Clone(all)
			for _, p := range g.Pred(n) {
				predom = intersect(predom, dominators[p])
			}
			predom[n] = true
			dominators[n] = predom
		}
		if domMapsEqual(prev, dominators) {
			break
		}
	}

	g.domSets = dominators
	return dominators, nil
}

// Dom reports whether a dominates b.
func (g *Graph) Dom(a, b string) (bool, error) {
	dom, err := g.Dominators()
	if err != nil {
		return false, err
	}
	set, ok := dom[b]
	if !ok {
		return false, errUnknownNode("node %q not in graph", b)
	}
	return set[a], nil
}

// StrictDom reports whether a strictly dominates b (a dominates b, a != b).
func (g *Graph) StrictDom(a, b string) (bool, error) {
	d, err := g.Dom(a, b)
	if err != nil {
		return false, err
	}
	return d && a != b, nil
}

// Idom returns the immediate dominator of node: the unique strict
// dominator of node that strictly dominates no other strict dominator of
// node. The root (and any node with no strict dominators) has no idom.
func (g *Graph) Idom(node string) (string, bool, error) {
	if _, err := g.Dominators(); err != nil {
		return "", false, err
	}
	var strictDoms []string
	for _, n := range g.nodeOrder {
		sd, err := g.StrictDom(n, node)
		if err != nil {
			return "", false, err
		}
		if sd {
			strictDoms = append(strictDoms, n)
		}
	}
	for _, candidate := range strictDoms {
		dominatesAnother := false
		for _, other := range strictDoms {
			sd, err := g.StrictDom(candidate, other)
			if err != nil {
				return "", false, err
			}
			if sd {
				dominatesAnother = true
				break
			}
		}
		if !dominatesAnother {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// DominatorTree returns the graph whose edges are (idom(n), n) for every n.
func (g *Graph) DominatorTree() (*Graph, error) {
	if err := g.CheckRoot(); err != nil {
		return nil, err
	}
	tree := New()
	tree.AddNodes(g.nodeOrder...)
	for _, n := range g.nodeOrder {
		idom, ok, err := g.Idom(n)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := tree.AddEdges(Edge{From: idom, To: n}); err != nil {
				return nil, err
			}
		}
	}
	return tree, nil
}

// DominanceFrontier computes DF(node): nodes y such that some predecessor
// of y is dominated by node, but node does not strictly dominate y.
func (g *Graph) DominanceFrontier(node string) (map[string]bool, error) {
	if _, err := g.Dominators(); err != nil {
		return nil, err
	}
	frontier := make(map[string]bool)
	for _, y := range g.nodeOrder {
		sd, err := g.StrictDom(node, y)
		if err != nil {
			return nil, err
		}
		if sd {
			continue
		}
		for _, p := range g.Pred(y) {
			d, err := g.Dom(node, p)
			if err != nil {
				return nil, err
			}
			if d {
				frontier[y] = true
				break
			}
		}
	}
	return frontier, nil
}

// DominanceFrontiers computes DominanceFrontier for every node.
func (g *Graph) DominanceFrontiers() (map[string]map[string]bool, error) {
	out := make(map[string]map[string]bool, len(g.nodeOrder))
	for _, n := range g.nodeOrder {
		df, err := g.DominanceFrontier(n)
		if err != nil {
			return nil, err
		}
		out[n] = df
	}
	return out, nil
}

// Reverse returns a new graph with every edge flipped. If reverseRoot is
// non-empty, it becomes the root of the reversed graph; it must exist in
// the original graph.
func (g *Graph) Reverse(reverseRoot string) (*Graph, error) {
	rev := New()
	rev.AddNodes(g.nodeOrder...)
	for _, from := range g.nodeOrder {
		for _, to := range g.succ[from] {
			if err := rev.AddEdges(Edge{From: to, To: from}); err != nil {
				return nil, err
			}
		}
	}
	if reverseRoot != "" {
		if !g.nodeSeen[reverseRoot] {
			return nil, errUnknownNode("node %q does not exist in the reverse graph", reverseRoot)
		}
		if err := rev.SetRoot(reverseRoot); err != nil {
			return nil, err
		}
	}
	return rev, nil
}

// HasPath reports whether there is a path from a to b, including the
// trivial path when a == b. Uses an explicit visited accumulator to avoid
// revisiting nodes in cyclic graphs.
func (g *Graph) HasPath(a, b string) (bool, error) {
	if !g.nodeSeen[a] || !g.nodeSeen[b] {
		return false, errUnknownNode("one or more of (%s, %s) not in graph", a, b)
	}
	if a == b {
		return true, nil
	}
	visited := map[string]bool{a: true}
	return g.hasPath(a, b, visited), nil
}

func (g *Graph) hasPath(from, to string, visited map[string]bool) bool {
	for _, next := range g.succ[from] {
		if next == to {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		if g.hasPath(next, to, visited) {
			return true
		}
	}
	return false
}

// ControlDependenceGraph builds the CDG: augment the graph with a virtual
// "start" node pointing at every root candidate (or just the root, if one
// is set), reverse it, add an edge back to start from each root candidate
// of the reversed graph (the original's exit nodes), and emit an edge e -> n for every n and every e in the reverse graph's
// dominance frontier of n.
func (g *Graph) ControlDependenceGraph() (*Graph, error) {
	const startNode = "__start__"

	augmented := New()
	augmented.AddNodes(g.nodeOrder...)
	for _, from := range g.nodeOrder {
		for _, to := range g.succ[from] {
			if err := augmented.AddEdges(Edge{From: from, To: to}); err != nil {
				return nil, err
			}
		}
	}
	augmented.AddNodes(startNode)

	var starts []string
	if g.hasRoot {
		starts = []string{g.root}
	} else {
		starts = g.FindRootCandidates()
	}
	for _, s := range starts {
		if err := augmented.AddEdges(Edge{From: startNode, To: s}); err != nil {
			return nil, err
		}
	}

	reverseGraph, err := augmented.Reverse("")
	if err != nil {
		return nil, err
	}
	for _, s := range reverseGraph.FindRootCandidates() {
		if err := reverseGraph.AddEdges(Edge{From: s, To: startNode}); err != nil {
			return nil, err
		}
	}

	rdf, err := reverseGraph.DominanceFrontiers()
	if err != nil {
		return nil, err
	}

	cdg := New()
	cdg.AddNodes(augmented.Nodes()...)
	for node, frontier := range rdf {
		froms := maps.Keys(frontier)
		sort.Strings(froms)
		for _, from := range froms {
			if err := cdg.AddEdges(Edge{From: from, To: node}); err != nil {
				return nil, err
			}
		}
	}
	return cdg, nil
}
