package optimize

import (
	"testing"

	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

func TestConditionalConstantPropagationPrunesKnownBranch(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{
				{Op: ir.OpMove, Dest: "a", Src: []string{"#5"}},
				{Op: ir.OpCmp, Src: []string{"a", "#5"}},
				{Op: ir.OpBeq},
			}, Next: []string{"left", "right"}},
			{Name: "left", Code: []ir.Operation{{Op: ir.OpStore, Src: []string{"a"}}}},
			{Name: "right", Code: []ir.Operation{{Op: ir.OpStore, Src: []string{"#99"}}}},
		},
	}

	if err := ConditionalConstantPropagation(code); err != nil {
		t.Fatal(err)
	}

	if len(code.Blocks) != 2 {
		t.Fatalf("expected right to be pruned, got blocks %+v", code.Blocks)
	}
	entry, err := code.Block("entry")
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Code) != 0 {
		t.Fatalf("expected entry's MOV/CMP/BEQ to all resolve away, got %+v", entry.Code)
	}
	if len(entry.Next) != 1 || entry.Next[0] != "left" {
		t.Fatalf("expected entry.Next == [left], got %v", entry.Next)
	}
	left, err := code.Block("left")
	if err != nil {
		t.Fatal(err)
	}
	if left.Code[0].Src[0] != "#5" {
		t.Fatalf("expected a's constant value #5 substituted at the use, got %+v", left.Code[0])
	}
}

func TestConditionalConstantPropagationLeavesUnknownBranchIntact(t *testing.T) {
	code := &ir.Code{
		StartingBlock: "entry",
		Blocks: []ir.Block{
			{Name: "entry", Code: []ir.Operation{
				{Op: ir.OpCmp, Src: []string{"p", "q"}},
				{Op: ir.OpBeq},
			}, Next: []string{"left", "right"}},
			{Name: "left", Code: []ir.Operation{{Op: ir.OpStore, Src: []string{"p"}}}},
			{Name: "right", Code: []ir.Operation{{Op: ir.OpStore, Src: []string{"q"}}}},
		},
	}

	if err := ConditionalConstantPropagation(code); err != nil {
		t.Fatal(err)
	}

	if len(code.Blocks) != 3 {
		t.Fatalf("expected both branches to survive with inputs p/q unresolved, got %+v", code.Blocks)
	}
}
