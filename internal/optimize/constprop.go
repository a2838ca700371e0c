// Package optimize implements the pipeline's value-flow passes: simple
// constant propagation, Wegman-Zadeck conditional constant propagation,
// and simple/aggressive dead-code elimination.
package optimize

import "github.com/minuteman3/ssa-optimiser/internal/ir"

// ConstantPropagation runs the simple (non-conditional) worklist pass over
// every statement: canonicalize constant phis into copies, fold constant
// binary operations, and propagate single-source copies, re-enqueueing
// every statement a propagation touches. Grounded on
// original_source/cs4071_ssa_optimiser/constant_propagation.py.
func ConstantPropagation(code *ir.Code) {
	var worklist []ir.Site
	inWorklist := make(map[ir.Site]bool)
	enqueue := func(s ir.Site) {
		if inWorklist[s] {
			return
		}
		inWorklist[s] = true
		worklist = append(worklist, s)
	}
	for _, s := range code.Statements() {
		enqueue(s)
	}

	for len(worklist) > 0 {
		site := worklist[0]
		worklist = worklist[1:]
		delete(inWorklist, site)

		op, err := code.At(site)
		if err != nil || op.Deleted {
			continue
		}

		if ir.IsConstantPhi(op) {
			convertPhiToCopy(op)
		}
		if ir.IsFoldable(op.Op) && len(op.Src) >= 2 && ir.IsConstVal(op.Src[0]) && ir.IsConstVal(op.Src[1]) {
			ir.FoldConstantOperation(op)
		}
		if ir.IsCopy(op) && len(op.Src) == 1 {
			propagateConstantCopy(code, site.Block, op, enqueue)
		}
	}
	ir.Sweep(code)
}

func convertPhiToCopy(op *ir.Operation) {
	val := op.Src[0]
	op.Op = ir.OpMove
	op.Src = []string{val}
}

// propagateConstantCopy deletes a single-source MOV and substitutes its
// value at every remaining use, re-enqueueing every statement it touches.
func propagateConstantCopy(code *ir.Code, defBlock string, def *ir.Operation, enqueue func(ir.Site)) {
	val := def.Src[0]
	name := def.Dest
	def.Deleted = true

	for bi := range code.Blocks {
		b := &code.Blocks[bi]
		for i := range b.Code {
			op := &b.Code[i]
			if op.Deleted || (b.Name == defBlock && &b.Code[i] == def) {
				continue
			}
			changed := false
			for si := range op.Src {
				if op.Src[si] == name {
					op.Src[si] = val
					changed = true
				}
			}
			if changed {
				enqueue(ir.Site{Block: b.Name, Statement: i})
			}
		}
	}
}
