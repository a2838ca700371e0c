package optimize

import (
	"testing"

	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

func TestDeadCodeEliminationRemovesUnusedChain(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{
				{Op: ir.OpAdd, Dest: "t0", Src: []string{"#1", "#2"}},
				{Op: ir.OpMove, Dest: "t1", Src: []string{"t0"}}, // t1 unused: dead, and once removed t0 becomes dead too
				{Op: ir.OpStore, Src: []string{"#9"}},
			}},
		},
	}

	DeadCodeElimination(code)

	entry, _ := code.Block("entry")
	if len(entry.Code) != 1 || entry.Code[0].Op != ir.OpStore {
		t.Fatalf("expected only the STR to survive, got %+v", entry.Code)
	}
}

func TestDeadCodeEliminationKeepsLiveDefs(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{
				{Op: ir.OpAdd, Dest: "t0", Src: []string{"#1", "#2"}},
				{Op: ir.OpStore, Src: []string{"t0"}},
			}},
		},
	}

	DeadCodeElimination(code)

	entry, _ := code.Block("entry")
	if len(entry.Code) != 2 {
		t.Fatalf("expected both statements to survive (t0 is used), got %+v", entry.Code)
	}
}
