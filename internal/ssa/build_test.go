package ssa

import (
	"testing"

	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

// diamond builds: entry -> (left, right) -> join, with entry/left/right
// each defining r0, and join using r0 — the textbook single-phi case.
func diamond() *ir.Code {
	return &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{{Op: ir.OpCmp, Src: []string{"r1", "#0"}}, {Op: ir.OpBeq}}, Next: []string{"left", "right"}},
			{Name: "left", Code: []ir.Operation{{Op: ir.OpMove, Dest: "r0", Src: []string{"#1"}}}, Next: []string{"join"}},
			{Name: "right", Code: []ir.Operation{{Op: ir.OpMove, Dest: "r0", Src: []string{"#2"}}}, Next: []string{"join"}},
			{Name: "join", Code: []ir.Operation{{Op: ir.OpStore, Src: []string{"r0"}}}, Next: nil},
		},
	}
}

func TestBuildInsertsPhiAtJoin(t *testing.T) {
	code := diamond()
	if err := Build(code); err != nil {
		t.Fatal(err)
	}
	join, err := code.Block("join")
	if err != nil {
		t.Fatal(err)
	}
	if len(join.Code) != 2 {
		t.Fatalf("expected phi + store at join, got %+v", join.Code)
	}
	phi := join.Code[0]
	if phi.Op != ir.OpPhi || len(phi.Src) != 2 {
		t.Fatalf("expected a 2-source phi, got %+v", phi)
	}
}

func TestBuildRenamesEachDefUniquely(t *testing.T) {
	code := diamond()
	if err := Build(code); err != nil {
		t.Fatal(err)
	}
	left, _ := code.Block("left")
	right, _ := code.Block("right")
	if left.Code[0].Dest == right.Code[0].Dest {
		t.Fatalf("expected distinct SSA names, got %q and %q", left.Code[0].Dest, right.Code[0].Dest)
	}
}

// loopWithPhi builds a simple counted loop: entry defines i, header phis
// i from entry and from the back edge, body increments i, exit uses i.
func loopWithPhi() *ir.Code {
	return &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{{Op: ir.OpMove, Dest: "i", Src: []string{"#0"}}}, Next: []string{"header"}},
			{Name: "header", Code: []ir.Operation{
				{Op: ir.OpCmp, Src: []string{"i", "#10"}},
				{Op: ir.OpBlt},
			}, Next: []string{"body", "exit"}},
			{Name: "body", Code: []ir.Operation{
				{Op: ir.OpAdd, Dest: "i", Src: []string{"i", "#1"}},
			}, Next: []string{"header"}},
			{Name: "exit", Code: []ir.Operation{{Op: ir.OpReturn, Src: []string{"i"}}}, Next: nil},
		},
	}
}

func TestBuildLoopInducesOnePhiAtHeader(t *testing.T) {
	code := loopWithPhi()
	if err := Build(code); err != nil {
		t.Fatal(err)
	}
	header, err := code.Block("header")
	if err != nil {
		t.Fatal(err)
	}
	phiCount := 0
	for _, op := range header.Code {
		if op.Op == ir.OpPhi {
			phiCount++
			if len(op.Src) != 2 {
				t.Fatalf("expected header phi to have 2 sources, got %+v", op)
			}
		}
	}
	if phiCount != 1 {
		t.Fatalf("expected exactly one phi at header, got %d", phiCount)
	}
}
