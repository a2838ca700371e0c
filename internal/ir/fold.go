package ir

import (
	"strconv"
)

// ParseConst parses a constant literal of the form "#123" into its signed
// 64-bit value. The second return is false (a local, swallowed
// FoldError::NonIntegerConstant per spec 7) when val isn't a well-formed
// constant literal.
func ParseConst(val string) (int64, bool) {
	if !IsConstVal(val) {
		return 0, false
	}
	n, err := strconv.ParseInt(val[1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatConst renders n as a constant literal.
func FormatConst(n int64) string {
	return "#" + strconv.FormatInt(n, 10)
}

// FoldBinary evaluates a foldable binary opcode over two signed 64-bit
// operands with wrap-around on overflow, per spec 4.4's fold table. RSB is
// "reverse subtract": b - a. The second return is false for any opcode not
// in the foldable set.
func FoldBinary(op string, a, b int64) (int64, bool) {
	switch op {
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpRsb:
		return b - a, true
	case OpMul:
		return a * b, true
	default:
		return 0, false
	}
}

// FoldConstantOperation attempts to fold op in place when both of its
// first two sources are constant literals. Returns true if op was folded
// into a MOV. Mirrors the original's _fold_constant/_do_op, generalized to
// FoldBinary's wrap-around semantics.
func FoldConstantOperation(op *Operation) bool {
	if !IsFoldable(op.Op) || len(op.Src) < 2 {
		return false
	}
	a, ok1 := ParseConst(op.Src[0])
	b, ok2 := ParseConst(op.Src[1])
	if !ok1 || !ok2 {
		return false
	}
	result, ok := FoldBinary(op.Op, a, b)
	if !ok {
		return false
	}
	op.Op = OpMove
	op.Src = []string{FormatConst(result)}
	return true
}
