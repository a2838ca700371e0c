package graph

import "testing"

// classExample builds the textbook dominance-frontier example carried in
// the original's graphs.py main(): start -> 1 -> {2,...} with a loop
// through 7 back to 2, and a side exit through 4.
func classExample(t *testing.T) *Graph {
	t.Helper()
	g := New()
	g.AddNodes("start", "1", "2", "3", "4", "5", "6", "7", "exit")
	edges := []Edge{
		{"start", "1"}, {"1", "2"}, {"2", "3"}, {"2", "4"},
		{"3", "5"}, {"3", "6"}, {"5", "7"}, {"6", "7"}, {"7", "2"}, {"4", "exit"},
	}
	if err := g.AddEdges(edges...); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := g.SetRoot("start"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return g
}

func TestDominatorsBasic(t *testing.T) {
	g := classExample(t)
	dom, err := g.Dominators()
	if err != nil {
		t.Fatal(err)
	}
	if !dom["2"]["1"] || !dom["2"]["start"] {
		t.Fatalf("expected start and 1 to dominate 2, got %+v", dom["2"])
	}
	if dom["2"]["3"] {
		t.Fatalf("3 should not dominate 2")
	}
	// Everything below 2 (the loop body 3,5,6,7 and the side exit 4) is
	// dominated by 2.
	for _, n := range []string{"3", "4", "5", "6", "7"} {
		if !dom[n]["2"] {
			t.Fatalf("expected 2 to dominate %s", n)
		}
	}
}

func TestIdomAndDominatorTree(t *testing.T) {
	g := classExample(t)
	idom, ok, err := g.Idom("7")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected 7 to have an idom")
	}
	// 7 is reached via 5 and 6, both dominated by 3; idom(7) should be 3.
	if idom != "3" {
		t.Fatalf("idom(7) = %q, want 3", idom)
	}
	tree, err := g.DominatorTree()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range tree.Succ("3") {
		if c == "7" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dominator tree edge 3 -> 7, got children %v", tree.Succ("3"))
	}
}

func TestDominanceFrontierAtLoopHeader(t *testing.T) {
	g := classExample(t)
	// 2 is the loop header; 7 (in the loop) has a back edge to 2, so 2 is
	// in DF(7) (7 does not strictly dominate 2, but 2's predecessor 7 is
	// dominated by 7 itself).
	df, err := g.DominanceFrontier("7")
	if err != nil {
		t.Fatal(err)
	}
	if !df["2"] {
		t.Fatalf("expected 2 in DF(7), got %+v", df)
	}
}

func TestReverseFlipsEdges(t *testing.T) {
	g := classExample(t)
	rev, err := g.Reverse("exit")
	if err != nil {
		t.Fatal(err)
	}
	succs := rev.Succ("exit")
	if len(succs) != 1 || succs[0] != "4" {
		t.Fatalf("reverse(exit).succ(exit) = %v, want [4]", succs)
	}
}

func TestHasPath(t *testing.T) {
	g := classExample(t)
	ok, err := g.HasPath("start", "exit")
	if err != nil || !ok {
		t.Fatalf("expected path start -> exit, err=%v ok=%v", err, ok)
	}
	ok, err = g.HasPath("4", "3")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("did not expect a path from 4 back to 3")
	}
	ok, err = g.HasPath("7", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a path from 7 back to 3 via the loop (7 -> 2 -> 3)")
	}
}

func TestControlDependenceGraph(t *testing.T) {
	g := New()
	g.AddNodes("entry", "b1", "b2", "b3", "exit")
	edges := []Edge{
		{"entry", "b1"}, {"b1", "b2"}, {"b1", "b3"}, {"b2", "exit"}, {"b3", "exit"},
	}
	if err := g.AddEdges(edges...); err != nil {
		t.Fatal(err)
	}
	if err := g.SetRoot("entry"); err != nil {
		t.Fatal(err)
	}
	cdg, err := g.ControlDependenceGraph()
	if err != nil {
		t.Fatal(err)
	}
	// b2 and b3 are each control-dependent on the branch at b1.
	foundB2, foundB3 := false, false
	for _, s := range cdg.Succ("b1") {
		if s == "b2" {
			foundB2 = true
		}
		if s == "b3" {
			foundB3 = true
		}
	}
	if !foundB2 || !foundB3 {
		t.Fatalf("expected b1 -> {b2,b3} in cdg, got %v", cdg.Succ("b1"))
	}
}

func TestAddEdgesUnknownNodeFails(t *testing.T) {
	g := New()
	g.AddNodes("a")
	err := g.AddEdges(Edge{"a", "b"})
	if err == nil {
		t.Fatal("expected an error for edge to unknown node")
	}
	ge, ok := err.(*Error)
	if !ok || ge.Kind != UnknownNode {
		t.Fatalf("expected UnknownNode error, got %v", err)
	}
}

func TestSelfEdgeDropped(t *testing.T) {
	g := New()
	g.AddNodes("a")
	if err := g.AddEdges(Edge{"a", "a"}); err != nil {
		t.Fatal(err)
	}
	if len(g.Succ("a")) != 0 {
		t.Fatalf("expected self-edge to be dropped, got %v", g.Succ("a"))
	}
}
