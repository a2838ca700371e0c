package optimize

import (
	"testing"

	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

func TestConstantPropagationFoldsAndPropagatesChain(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{
				{Op: ir.OpAdd, Dest: "r0", Src: []string{"#2", "#3"}},
				{Op: ir.OpMove, Dest: "r1", Src: []string{"r0"}},
				{Op: ir.OpStore, Src: []string{"r1"}},
			}},
		},
	}

	ConstantPropagation(code)

	entry, _ := code.Block("entry")
	if len(entry.Code) != 1 {
		t.Fatalf("expected only the STR to survive, got %+v", entry.Code)
	}
	store := entry.Code[0]
	if store.Op != ir.OpStore || len(store.Src) != 1 || store.Src[0] != "#5" {
		t.Fatalf("expected STR #5, got %+v", store)
	}
}

func TestConstantPropagationConvertsConstantPhi(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "join",
		Blocks: []ir.Block{
			{Name: "join", Code: []ir.Operation{
				{Op: ir.OpPhi, Dest: "x", Src: []string{"#4", "#4"}},
				{Op: ir.OpStore, Src: []string{"x"}},
			}},
		},
	}

	ConstantPropagation(code)

	join, _ := code.Block("join")
	if len(join.Code) != 1 {
		t.Fatalf("expected phi to be folded away, got %+v", join.Code)
	}
	if join.Code[0].Src[0] != "#4" {
		t.Fatalf("expected STR #4, got %+v", join.Code[0])
	}
}
