package ckw

import "fmt"

// UnaryOp is an elementwise one-operand operation.
type UnaryOp int

const (
	UnaryLogicalNot UnaryOp = iota
	UnaryBitwiseNot
	UnaryNegate
	UnaryExp
	UnaryTanh
	UnarySqrt
	UnaryErf
	UnaryFabs
	UnaryLog
	UnaryRound
)

var unaryNames = [...]string{"logical_not", "bitwise_not", "negate", "exp", "tanh", "sqrt", "erf", "fabs", "log", "round"}

func (o UnaryOp) String() string {
	if o >= 0 && int(o) < len(unaryNames) {
		return unaryNames[o]
	}
	return fmt.Sprintf("UnaryOp(%d)", int(o))
}

// BinaryOp is an elementwise two-operand operation, plus the matmul accumulation.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryEqual
	BinaryLess
	BinaryLessEqual
	BinaryGreater
	BinaryGreaterEqual
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryBitwiseXOR
	BinaryMin
	BinaryMax
	// BinaryMatMulNtT accumulates dst += lhs * transpose(rhs).
	BinaryMatMulNtT
)

var binaryNames = [...]string{
	"add", "sub", "mul", "div", "mod",
	"equal", "less", "less_equal", "greater", "greater_equal",
	"logical_and", "logical_or", "bitwise_xor", "min", "max", "matmul_nt_t",
}

func (o BinaryOp) String() string {
	if o >= 0 && int(o) < len(binaryNames) {
		return binaryNames[o]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(o))
}

// IsComparison reports whether the op yields a truth value from two operands.
func (o BinaryOp) IsComparison() bool {
	switch o {
	case BinaryEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual, BinaryLogicalAnd, BinaryLogicalOr:
		return true
	}
	return false
}

// TernaryOp is an elementwise three-operand operation.
type TernaryOp int

const (
	TernarySelect TernaryOp = iota
	TernaryClamp
)

func (o TernaryOp) String() string {
	switch o {
	case TernarySelect:
		return "select"
	case TernaryClamp:
		return "clamp"
	}
	return fmt.Sprintf("TernaryOp(%d)", int(o))
}

// AssignOp is the compound update used by for-loops.
type AssignOp int

const (
	AssignIncrement AssignOp = iota
	AssignDecrement
)

func (o AssignOp) String() string {
	switch o {
	case AssignIncrement:
		return "+="
	case AssignDecrement:
		return "-="
	}
	return fmt.Sprintf("AssignOp(%d)", int(o))
}

// ConvertPolicy controls overflow behavior of casts.
type ConvertPolicy int

const (
	ConvertNone ConvertPolicy = iota
	ConvertSaturate
)

// MemoryOperation is the direction of a tensor access.
type MemoryOperation int

const (
	MemoryLoad MemoryOperation = iota
	MemoryStore
)

func (m MemoryOperation) String() string {
	if m == MemoryStore {
		return "store"
	}
	return "load"
}
