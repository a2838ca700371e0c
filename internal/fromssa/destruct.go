// Package fromssa turns SSA form back into conventional code: Sreedhar's
// four-stage translation out of SSA.
package fromssa

import (
	"fmt"

	"github.com/minuteman3/ssa-optimiser/internal/graph"
	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

// Destruct converts code out of SSA form in place, in four stages:
//
//	A. every constant phi operand is replaced by a fresh copy inserted in
//	   the corresponding predecessor (constant operands can't take part in
//	   the congruence-class coalescing Stage C performs).
//	B. every phi is lifted into conventional SSA (CSSA) by surrounding it
//	   with copies on every incoming edge and on its own definition
//	   (Sreedhar's Method I — simple, at the cost of extra copies).
//	C. each phi's congruence class (its dest and all its Method-I copies)
//	   is coalesced down to one variable via union-find, and the
//	   now-redundant phis are deleted.
//	D. the self-copies coalescing leaves behind are removed.
//
// Grounded on original_source/src/fromSSA.py (fixConstants/toCSSA/
// coalescePhis), restructured per spec 4.8's Design Notes: a deterministic,
// lexicographically-smallest coalescing representative via union-find,
// rather than the original's flattenEquivs, which picks an arbitrary
// element via Python's nondeterministic set.pop().
func Destruct(code *ir.Code) error {
	g, err := ir.BuildGraph(code)
	if err != nil {
		return err
	}
	fixConstantPhiOperands(code, g)
	insertCongruenceCopies(code, g)
	coalescePhis(code)
	removeRedundantCopies(code)
	return nil
}

// insertAt inserts op at index idx of ops, shifting the tail right by one.
func insertAt(ops []ir.Operation, idx int, op ir.Operation) []ir.Operation {
	ops = append(ops, ir.Operation{})
	copy(ops[idx+1:], ops[idx:])
	ops[idx] = op
	return ops
}

func isTerminator(op string) bool {
	return ir.IsConditionalBranch(op) || ir.IsUnconditionalBranch(op)
}

// appendBeforeTerminator appends op to blk, ahead of a trailing branch if
// one is present, so the copy still executes on every path out of the
// block.
func appendBeforeTerminator(blk *ir.Block, op ir.Operation) {
	n := len(blk.Code)
	if n > 0 && isTerminator(blk.Code[n-1].Op) {
		blk.Code = insertAt(blk.Code, n-1, op)
		return
	}
	blk.Code = append(blk.Code, op)
}

// fixConstantPhiOperands is Stage A. Every block index is re-read from
// code.Blocks on each access rather than cached behind a pointer: a phi's
// predecessor can be its own block (a single-block self-loop), and
// appendBeforeTerminator growing that block's Code slice would silently
// strand a pointer taken before the call.
func fixConstantPhiOperands(code *ir.Code, g *graph.Graph) {
	counter := 0
	for bi := range code.Blocks {
		blockName := code.Blocks[bi].Name
		preds := g.Pred(blockName)

		for oi := 0; oi < len(code.Blocks[bi].Code); oi++ {
			if code.Blocks[bi].Code[oi].Op != ir.OpPhi {
				continue
			}
			for i := 0; i < len(code.Blocks[bi].Code[oi].Src); i++ {
				if i >= len(preds) || !ir.IsConstVal(code.Blocks[bi].Code[oi].Src[i]) {
					continue
				}
				name := fmt.Sprintf("constfix%d", counter)
				counter++
				constVal := code.Blocks[bi].Code[oi].Src[i]
				code.Blocks[bi].Code[oi].Src[i] = name

				predBlk, err := code.Block(preds[i])
				if err != nil {
					continue
				}
				appendBeforeTerminator(predBlk, ir.Operation{Op: ir.OpMove, Dest: name, Src: []string{constVal}})
			}
		}
	}
}

// insertCongruenceCopies is Stage B: every phi operand gets a copy in its
// predecessor, and the phi's own dest is replaced by a fresh copy fed by a
// new MOV inserted right after the block's leading phis.
func insertCongruenceCopies(code *ir.Code, g *graph.Graph) {
	copies := 0
	for bi := range code.Blocks {
		blockName := code.Blocks[bi].Name
		preds := g.Pred(blockName)

		phiCount := 0
		for phiCount < len(code.Blocks[bi].Code) && code.Blocks[bi].Code[phiCount].Op == ir.OpPhi {
			phiCount++
		}
		insertPos := phiCount

		for oi := 0; oi < phiCount; oi++ {
			for i := 0; i < len(code.Blocks[bi].Code[oi].Src); i++ {
				if i >= len(preds) {
					continue
				}
				name := fmt.Sprintf("cssacopy%d", copies)
				copies++
				srcVal := code.Blocks[bi].Code[oi].Src[i]
				code.Blocks[bi].Code[oi].Src[i] = name

				predBlk, err := code.Block(preds[i])
				if err != nil {
					continue
				}
				appendBeforeTerminator(predBlk, ir.Operation{Op: ir.OpMove, Dest: name, Src: []string{srcVal}})
			}

			destName := fmt.Sprintf("cssacopy%d", copies)
			copies++
			origDest := code.Blocks[bi].Code[oi].Dest
			code.Blocks[bi].Code[oi].Dest = destName
			code.Blocks[bi].Code = insertAt(code.Blocks[bi].Code, insertPos, ir.Operation{Op: ir.OpMove, Dest: origDest, Src: []string{destName}})
			insertPos++
		}
	}
}

// unionFind is a disjoint-set structure over variable names. Attaching the
// lexicographically larger root under the smaller one at every union keeps
// the eventual representative of any class deterministic: its global
// minimum, rather than whichever element Python's set.pop() happens to
// return first.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// coalescePhis is Stage C: every phi's dest and source operands are unioned
// into one congruence class, every statement's operands are rewritten to
// their class representative, and the (now redundant) phis are deleted.
func coalescePhis(code *ir.Code) {
	uf := newUnionFind()
	for _, b := range code.Blocks {
		for _, op := range b.Code {
			if op.Op != ir.OpPhi {
				continue
			}
			for _, src := range op.Src {
				if ir.IsVar(src) {
					uf.union(op.Dest, src)
				}
			}
		}
	}

	for bi := range code.Blocks {
		b := &code.Blocks[bi]
		for i := range b.Code {
			op := &b.Code[i]
			if op.Op == ir.OpPhi {
				op.Deleted = true
				continue
			}
			if op.HasDest() {
				op.Dest = uf.find(op.Dest)
			}
			for si := range op.Src {
				if ir.IsVar(op.Src[si]) {
					op.Src[si] = uf.find(op.Src[si])
				}
			}
		}
	}
	ir.Sweep(code)
}

// removeRedundantCopies is Stage D: coalescing very often collapses a
// copy's destination and source to the same representative, leaving a
// MOV x <- x with nothing left to do.
func removeRedundantCopies(code *ir.Code) {
	for bi := range code.Blocks {
		b := &code.Blocks[bi]
		for i := range b.Code {
			op := &b.Code[i]
			if op.Op == ir.OpMove && len(op.Src) == 1 && op.Src[0] == op.Dest {
				op.Deleted = true
			}
		}
	}
	ir.Sweep(code)
}
