package optimize

import "github.com/minuteman3/ssa-optimiser/internal/ir"

// pureDefOps are the opcodes dead-code elimination is allowed to remove:
// every defining op with no side effect, including phi (a dead phi is as
// safe to drop as a dead MOV). Grounded on the NO_SIDE_EFFECTS list in
// original_source/src/dead_code_elimination.py, which predates SSA and so
// omits phi; this is the one addition SSA form requires.
var pureDefOps = map[string]bool{
	ir.OpMove: true, ir.OpAdd: true, ir.OpSub: true, ir.OpRsb: true, ir.OpMul: true, ir.OpPhi: true,
}

// DeadCodeElimination removes defs with no remaining uses to a fixed point:
// deleting a statement can make its own operands dead in turn, so the
// variable map is rebuilt and rescanned until a full pass deletes nothing.
// Grounded on original_source/src/dead_code_elimination.py.
func DeadCodeElimination(code *ir.Code) {
	for {
		vars := ir.GetVariables(code)
		changed := false
		for _, info := range vars {
			if info.DefSite == nil || len(info.Uses) > 0 {
				continue
			}
			op, err := code.At(*info.DefSite)
			if err != nil || op.Deleted || !pureDefOps[op.Op] {
				continue
			}
			op.Deleted = true
			changed = true
		}
		ir.Sweep(code)
		if !changed {
			return
		}
	}
}
