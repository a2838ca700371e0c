package optimize

import (
	"github.com/minuteman3/ssa-optimiser/internal/graph"
	"github.com/minuteman3/ssa-optimiser/internal/ir"
)

// latticeState is a value's position in the three-level CCP lattice:
// never assigned, a known constant, or overdefined (assigned more than one
// distinct value, or derived from a non-constant).
type latticeState int

const (
	latticeNever latticeState = iota
	latticeConstant
	latticeOver
)

type latticeValue struct {
	state latticeState
	value string // only meaningful when state == latticeConstant
}

// meet computes the join of two lattice values: NEVER is the identity,
// OVER is absorbing, and two different constants collapse to OVER.
func meet(a, b latticeValue) latticeValue {
	if a.state == latticeNever {
		return b
	}
	if b.state == latticeNever {
		return a
	}
	if a.state == latticeOver || b.state == latticeOver {
		return latticeValue{state: latticeOver}
	}
	if a.value == b.value {
		return a
	}
	return latticeValue{state: latticeOver}
}

// cmpOutcome is the pending result of the most recent CMP seen in a block,
// consumed by the next conditional branch in that same block. Tracked
// per-block rather than as a single pipeline-wide variable: the original's
// conditional_constant_propagation.py carries one global `branch` value
// across the whole worklist, which silently misattributes a comparison's
// outcome to an unrelated block's branch whenever two CMPs interleave in
// worklist order. Spec 4.5 asks for the corrected, block-scoped version.
type cmpOutcome string

const (
	outcomeGT      cmpOutcome = "GT"
	outcomeLT      cmpOutcome = "LT"
	outcomeEQ      cmpOutcome = "EQ"
	outcomeUnknown cmpOutcome = "UNKNOWN"
)

type edgeKey struct{ from, to string }

// ccpState holds the full mutable state of one conditional-constant-
// propagation run: per-variable lattice values, block/edge executability,
// the pending per-block comparison outcome, and the worklist. Grounded on
// original_source/cs4071_ssa_optimiser/conditional_constant_propagation.py,
// restructured per spec 4.5's block-scoped comparison memory and its
// textbook (not buggy self-compared) meet rule.
type ccpState struct {
	code      *ir.Code
	cfg       *graph.Graph
	variables map[string]*ir.VariableInfo

	lattice    map[string]latticeValue
	blockExec  map[string]bool
	edgeExec   map[edgeKey]bool
	pendingCmp map[string]cmpOutcome

	worklist   []ir.Site
	inWorklist map[ir.Site]bool
}

// ConditionalConstantPropagation runs Wegman-Zadeck CCP to a fixed point,
// then prunes unreachable blocks, substitutes discovered constants at every
// use, and removes comparisons and branches the analysis has made moot.
func ConditionalConstantPropagation(code *ir.Code) error {
	cfg, err := ir.BuildGraph(code)
	if err != nil {
		return err
	}
	vars := ir.GetVariables(code)

	s := &ccpState{
		code:       code,
		cfg:        cfg,
		variables:  vars,
		lattice:    make(map[string]latticeValue, len(vars)),
		blockExec:  make(map[string]bool),
		edgeExec:   make(map[edgeKey]bool),
		pendingCmp: make(map[string]cmpOutcome),
		inWorklist: make(map[ir.Site]bool),
	}
	for name, info := range vars {
		if info.DefSite != nil {
			s.lattice[name] = latticeValue{state: latticeNever}
		} else {
			s.lattice[name] = latticeValue{state: latticeOver}
		}
	}

	if err := s.run(); err != nil {
		return err
	}
	return s.cleanup()
}

func (s *ccpState) enqueue(site ir.Site) {
	if s.inWorklist[site] {
		return
	}
	s.inWorklist[site] = true
	s.worklist = append(s.worklist, site)
}

func (s *ccpState) pop() ir.Site {
	site := s.worklist[0]
	s.worklist = s.worklist[1:]
	delete(s.inWorklist, site)
	return site
}

// val resolves an operand to a lattice value: constant literals are always
// latticeConstant; variable names look up the current lattice entry.
func (s *ccpState) val(operand string) latticeValue {
	if ir.IsConstVal(operand) {
		return latticeValue{state: latticeConstant, value: operand}
	}
	return s.lattice[operand]
}

func (s *ccpState) meetInto(name string, proposed latticeValue) {
	cur := s.lattice[name]
	merged := meet(cur, proposed)
	if merged == cur {
		return
	}
	s.lattice[name] = merged
	for _, use := range s.variables[name].Uses {
		s.enqueue(use)
	}
}

// markBlockExecutable marks a block executable for the first time: every
// statement in it becomes processable, and if it has exactly one successor
// that edge is unconditionally executable too.
func (s *ccpState) markBlockExecutable(name string) error {
	if s.blockExec[name] {
		return nil
	}
	s.blockExec[name] = true
	blk, err := s.code.Block(name)
	if err != nil {
		return err
	}
	for i := range blk.Code {
		s.enqueue(ir.Site{Block: name, Statement: i})
	}
	if len(blk.Next) == 1 {
		return s.markEdgeExecutable(name, blk.Next[0])
	}
	return nil
}

// markEdgeExecutable marks a single CFG edge executable. If the target
// block was already executable via some other edge, only its phis need
// reevaluation (their operand set gained a newly-executable predecessor);
// otherwise the whole block is newly reachable.
func (s *ccpState) markEdgeExecutable(from, to string) error {
	key := edgeKey{from, to}
	if s.edgeExec[key] {
		return nil
	}
	s.edgeExec[key] = true
	if s.blockExec[to] {
		blk, err := s.code.Block(to)
		if err != nil {
			return err
		}
		for i := range blk.Code {
			if blk.Code[i].Op != ir.OpPhi {
				break
			}
			s.enqueue(ir.Site{Block: to, Statement: i})
		}
		return nil
	}
	return s.markBlockExecutable(to)
}

func (s *ccpState) run() error {
	entry, err := s.code.EntryBlock()
	if err != nil {
		return err
	}
	if err := s.markBlockExecutable(entry); err != nil {
		return err
	}

	for len(s.worklist) > 0 {
		site := s.pop()
		if !s.blockExec[site.Block] {
			continue
		}
		blk, err := s.code.Block(site.Block)
		if err != nil {
			return err
		}
		if site.Statement >= len(blk.Code) {
			continue
		}
		if err := s.processStatement(blk, &blk.Code[site.Statement]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ccpState) processStatement(blk *ir.Block, op *ir.Operation) error {
	if op.HasDest() && s.lattice[op.Dest].state != latticeOver {
		switch {
		case op.Op == ir.OpPhi:
			s.processPhi(blk, op)
		case ir.IsCopy(op) && len(op.Src) >= 1:
			s.meetInto(op.Dest, s.val(op.Src[0]))
		case ir.IsFoldable(op.Op) && len(op.Src) >= 2:
			s.processFoldable(op)
		case op.Op == ir.OpLoad || op.Op == ir.OpCall:
			s.meetInto(op.Dest, latticeValue{state: latticeOver})
		}
	}

	if op.Op == ir.OpCmp && len(op.Src) >= 2 {
		s.processComparison(blk.Name, op)
	}

	if ir.IsConditionalBranch(op.Op) {
		return s.processBranch(blk, op)
	}
	return nil
}

func (s *ccpState) processPhi(blk *ir.Block, op *ir.Operation) {
	preds := s.cfg.Pred(blk.Name)
	for i, src := range op.Src {
		if i >= len(preds) {
			continue
		}
		if !s.edgeExec[edgeKey{preds[i], blk.Name}] {
			continue
		}
		s.meetInto(op.Dest, s.val(src))
	}
}

func (s *ccpState) processFoldable(op *ir.Operation) {
	a, b := s.val(op.Src[0]), s.val(op.Src[1])
	if a.state == latticeOver || b.state == latticeOver {
		s.meetInto(op.Dest, latticeValue{state: latticeOver})
		return
	}
	if a.state != latticeConstant || b.state != latticeConstant {
		return // one side still NEVER: wait for more evidence
	}
	av, _ := ir.ParseConst(a.value)
	bv, _ := ir.ParseConst(b.value)
	folded, ok := ir.FoldBinary(op.Op, av, bv)
	if !ok {
		s.meetInto(op.Dest, latticeValue{state: latticeOver})
		return
	}
	s.meetInto(op.Dest, latticeValue{state: latticeConstant, value: ir.FormatConst(folded)})
}

func (s *ccpState) processComparison(block string, op *ir.Operation) {
	a, b := s.val(op.Src[0]), s.val(op.Src[1])
	if a.state != latticeConstant || b.state != latticeConstant {
		if a.state == latticeOver || b.state == latticeOver {
			s.pendingCmp[block] = outcomeUnknown
		}
		return
	}
	av, _ := ir.ParseConst(a.value)
	bv, _ := ir.ParseConst(b.value)
	switch {
	case av > bv:
		s.pendingCmp[block] = outcomeGT
	case av < bv:
		s.pendingCmp[block] = outcomeLT
	default:
		s.pendingCmp[block] = outcomeEQ
	}
}

func (s *ccpState) processBranch(blk *ir.Block, op *ir.Operation) error {
	if len(blk.Next) != 2 {
		return nil
	}
	taken, fallthroughBlock := blk.Next[0], blk.Next[1]

	outcome, ok := s.pendingCmp[blk.Name]
	if !ok {
		outcome = outcomeUnknown
	}
	if outcome == outcomeUnknown {
		if err := s.markEdgeExecutable(blk.Name, taken); err != nil {
			return err
		}
		return s.markEdgeExecutable(blk.Name, fallthroughBlock)
	}

	var takesBranch bool
	switch op.Op {
	case ir.OpBeq:
		takesBranch = outcome == outcomeEQ
	case ir.OpBne:
		takesBranch = outcome != outcomeEQ
	case ir.OpBlt:
		takesBranch = outcome == outcomeLT
	case ir.OpBle:
		takesBranch = outcome == outcomeLT || outcome == outcomeEQ
	case ir.OpBgt:
		takesBranch = outcome == outcomeGT
	case ir.OpBge:
		takesBranch = outcome == outcomeGT || outcome == outcomeEQ
	}
	if takesBranch {
		return s.markEdgeExecutable(blk.Name, taken)
	}
	return s.markEdgeExecutable(blk.Name, fallthroughBlock)
}

// cleanup applies the fixed point's conclusions: unreachable blocks and the
// successor-list references to them are dropped, every variable resolved to
// a constant is substituted at its uses and its definition deleted, and
// comparisons/branches the substitution made moot are removed.
func (s *ccpState) cleanup() error {
	kept := s.code.Blocks[:0]
	for _, b := range s.code.Blocks {
		if s.blockExec[b.Name] {
			kept = append(kept, b)
		}
	}
	s.code.Blocks = kept
	for bi := range s.code.Blocks {
		next := s.code.Blocks[bi].Next[:0]
		for _, n := range s.code.Blocks[bi].Next {
			if s.blockExec[n] {
				next = append(next, n)
			}
		}
		s.code.Blocks[bi].Next = next
	}

	for name, lv := range s.lattice {
		if lv.state != latticeConstant {
			continue
		}
		info := s.variables[name]
		if info == nil || info.DefSite == nil {
			continue
		}
		for bi := range s.code.Blocks {
			b := &s.code.Blocks[bi]
			for i := range b.Code {
				op := &b.Code[i]
				for si := range op.Src {
					if op.Src[si] == name {
						op.Src[si] = lv.value
					}
				}
			}
		}
		if blk, err := s.code.Block(info.DefSite.Block); err == nil && info.DefSite.Statement < len(blk.Code) {
			blk.Code[info.DefSite.Statement].Deleted = true
		}
	}
	ir.Sweep(s.code)

	for bi := range s.code.Blocks {
		b := &s.code.Blocks[bi]
		cmpSurvives := false
		for i := range b.Code {
			op := &b.Code[i]
			switch {
			case op.Op == ir.OpCmp:
				if len(op.Src) >= 2 && ir.IsConstVal(op.Src[0]) && ir.IsConstVal(op.Src[1]) {
					op.Deleted = true
				} else {
					cmpSurvives = true
				}
			case ir.IsConditionalBranch(op.Op):
				if !cmpSurvives {
					op.Deleted = true
				}
			}
		}
	}
	ir.Sweep(s.code)
	return nil
}
