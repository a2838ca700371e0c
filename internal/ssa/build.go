// Package ssa converts an IR document into static single assignment form:
// φ-insertion at dominance-frontier join points, followed by variable
// renaming via a dominator-tree walk.
//
// Grounded on original_source/cs4071_ssa_optimiser/ssa.py (insertPhis,
// renameVars), cross-checked against the textbook dominance-frontier
// algorithm in _examples/tmc-mirror-go.tools/ssa/lift.go (liftAlloc,
// rename). One deliberate departure from the original: renameVars there
// recurses over raw CFG successors guarded by a `done` set, which happens
// to produce the same result as a dominator-tree walk but obscures why.
// This implementation recurses over the dominator tree directly, as spec
// 4.3 asks for, while still patching φ operands via the real CFG
// successors (a block's φ-patch step is independent of dominator-tree
// shape: it only depends on the predecessor's own rename state, which is
// fully determined by the time that predecessor is visited regardless of
// its siblings' visitation order).
package ssa

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/minuteman3/ssa-optimiser/internal/graph"
	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

// Build converts code into SSA form in place.
func Build(code *ir.Code) error {
	g, err := ir.BuildGraph(code)
	if err != nil {
		return err
	}
	if err := insertPhis(code, g); err != nil {
		return err
	}
	domTree, err := g.DominatorTree()
	if err != nil {
		return err
	}
	entry, err := code.EntryBlock()
	if err != nil {
		return err
	}
	r := &renamer{code: code, cfg: g, domTree: domTree, counters: map[string]int{}, stacks: map[string][]int{}}
	return r.visit(entry)
}

// insertPhis inserts phi functions at dominance-frontier join points for
// every variable with at least one definition site, per spec 4.3.
func insertPhis(code *ir.Code, g *graph.Graph) error {
	df, err := g.DominanceFrontiers()
	if err != nil {
		return err
	}

	hasPhi := make(map[string]map[string]bool, len(g.Nodes()))
	for _, b := range g.Nodes() {
		hasPhi[b] = make(map[string]bool)
	}

	defsites := make(map[string]map[string]bool)
	for _, b := range code.Blocks {
		for _, op := range b.Code {
			if op.HasDest() {
				if defsites[op.Dest] == nil {
					defsites[op.Dest] = make(map[string]bool)
				}
				defsites[op.Dest][b.Name] = true
			}
		}
	}

	vars := maps.Keys(defsites)
	sort.Strings(vars)

	for _, v := range vars {
		worklist := maps.Keys(defsites[v])
		sort.Strings(worklist)
		seen := make(map[string]bool, len(worklist))
		for _, n := range worklist {
			seen[n] = true
		}
		for len(worklist) > 0 {
			n := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]

			frontier := maps.Keys(df[n])
			sort.Strings(frontier)
			for _, y := range frontier {
				if hasPhi[y][v] {
					continue
				}
				preds := g.Pred(y)
				phi := ir.Operation{Op: ir.OpPhi, Dest: v, Src: make([]string, len(preds))}
				for i := range preds {
					phi.Src[i] = v
				}
				blk, err := code.Block(y)
				if err != nil {
					return err
				}
				blk.Code = append([]ir.Operation{phi}, blk.Code...)
				hasPhi[y][v] = true
				if !seen[y] {
					worklist = append(worklist, y)
					seen[y] = true
				}
			}
		}
	}
	return nil
}

// renamer holds the mutable rename state: a per-name monotonic counter and
// a per-name version stack, both keyed by the pre-SSA variable name.
type renamer struct {
	code     *ir.Code
	cfg      *graph.Graph
	domTree  *graph.Graph
	counters map[string]int
	stacks   map[string][]int
}

// top returns the current version on name's stack, auto-initializing it
// with the sentinel version 0 (the undefined/input version) on first use.
func (r *renamer) top(name string) int {
	s := r.stacks[name]
	if len(s) == 0 {
		r.stacks[name] = []int{0}
		return 0
	}
	return s[len(s)-1]
}

func versioned(name string, version int) string {
	return fmt.Sprintf("%s-%d", name, version)
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if s == target {
			return i
		}
	}
	return -1
}

// visit renames block's own statements, patches the corresponding phi
// operand in every CFG successor, then recurses into the block's
// dominator-tree children, popping its own pushed versions on the way out.
func (r *renamer) visit(block string) error {
	b, err := r.code.Block(block)
	if err != nil {
		return err
	}

	pushed := make(map[string]int)

	for i := range b.Code {
		op := &b.Code[i]
		if op.Op != ir.OpPhi {
			for si := range op.Src {
				if ir.IsVar(op.Src[si]) {
					op.Src[si] = versioned(op.Src[si], r.top(op.Src[si]))
				}
			}
		}
		if op.HasDest() {
			name := op.Dest
			r.top(name) // ensure seeded
			r.counters[name]++
			ver := r.counters[name]
			r.stacks[name] = append(r.stacks[name], ver)
			pushed[name]++
			op.Dest = versioned(name, ver)
		}
	}

	for _, s := range r.cfg.Succ(block) {
		preds := r.cfg.Pred(s)
		idx := indexOf(preds, block)
		if idx < 0 {
			return &ir.Error{Kind: ir.MalformedCfg, Msg: fmt.Sprintf("block %q not found among predecessors of %q", block, s), Block: s}
		}
		sb, err := r.code.Block(s)
		if err != nil {
			return err
		}
		for i := range sb.Code {
			op := &sb.Code[i]
			if op.Op != ir.OpPhi {
				break
			}
			if idx >= len(op.Src) {
				return &ir.Error{Kind: ir.MalformedCfg, Msg: "phi arity disagrees with predecessor count", Block: s, Stmt: i}
			}
			name := op.Src[idx]
			if ir.IsVar(name) {
				op.Src[idx] = versioned(name, r.top(name))
			}
		}
	}

	children := r.domTree.Succ(block)
	sort.Strings(children)
	for _, c := range children {
		if err := r.visit(c); err != nil {
			return err
		}
	}

	for name, n := range pushed {
		stack := r.stacks[name]
		r.stacks[name] = stack[:len(stack)-n]
	}
	return nil
}
