package ir

import "testing"

func sampleCode() *Code {
	return &Code{
		StartingBlock: "b0",
		Blocks: []Block{
			{
				Name: "b0",
				Code: []Operation{
					{Op: OpMove, Dest: "r0", Src: []string{"#1"}},
					{Op: OpMove, Dest: "r1", Src: []string{"#2"}},
					{Op: OpAdd, Dest: "r2", Src: []string{"r0", "r1"}},
					{Op: OpStore, Src: []string{"r2"}},
				},
				Next: nil,
			},
		},
	}
}

func TestEntryBlockDefaultsToFirst(t *testing.T) {
	c := sampleCode()
	c.StartingBlock = ""
	name, err := c.EntryBlock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "b0" {
		t.Fatalf("got %q, want b0", name)
	}
}

func TestSweepRemovesDeletedOnly(t *testing.T) {
	c := sampleCode()
	c.Blocks[0].Code[0].Deleted = true
	c.Blocks[0].Code[2].Deleted = true
	Sweep(c)
	if len(c.Blocks[0].Code) != 2 {
		t.Fatalf("got %d statements, want 2", len(c.Blocks[0].Code))
	}
	if c.Blocks[0].Code[0].Dest != "r1" {
		t.Fatalf("got dest %q, want r1", c.Blocks[0].Code[0].Dest)
	}
}

func TestRemoveStatementByStructuralEquality(t *testing.T) {
	c := sampleCode()
	target := Operation{Op: OpMove, Dest: "r1", Src: []string{"#2"}}
	if !RemoveStatement(c, target) {
		t.Fatal("expected to remove a matching statement")
	}
	if len(c.Blocks[0].Code) != 3 {
		t.Fatalf("got %d statements, want 3", len(c.Blocks[0].Code))
	}
}

func TestIsConstantPhi(t *testing.T) {
	phi := Operation{Op: OpPhi, Dest: "x-1", Src: []string{"#3", "#3"}}
	if !IsConstantPhi(&phi) {
		t.Fatal("expected constant phi")
	}
	phi.Src = []string{"#3", "#4"}
	if IsConstantPhi(&phi) {
		t.Fatal("expected non-constant phi")
	}
}

func TestFoldConstantOperation(t *testing.T) {
	op := Operation{Op: OpAdd, Dest: "r2", Src: []string{"#3", "#4"}}
	if !FoldConstantOperation(&op) {
		t.Fatal("expected fold to succeed")
	}
	if op.Op != OpMove || op.Src[0] != "#7" {
		t.Fatalf("got %+v, want MOV r2, #7", op)
	}
}

func TestFoldRsbIsReversed(t *testing.T) {
	v, ok := FoldBinary(OpRsb, 3, 10)
	if !ok || v != 7 {
		t.Fatalf("RSB #3, #10 = %d, want 7", v)
	}
}

func TestGetVariablesTracksDefAndUses(t *testing.T) {
	c := sampleCode()
	vars := GetVariables(c)
	r2 := vars["r2"]
	if r2 == nil || r2.DefSite == nil || r2.DefSite.Statement != 2 {
		t.Fatalf("expected r2 defined at statement 2, got %+v", r2)
	}
	if len(r2.Uses) != 1 || r2.Uses[0].Statement != 3 {
		t.Fatalf("expected r2 used once at statement 3, got %+v", r2.Uses)
	}
	r0 := vars["r0"]
	if r0 == nil || len(r0.Uses) != 1 {
		t.Fatalf("expected r0 used once, got %+v", r0)
	}
}
