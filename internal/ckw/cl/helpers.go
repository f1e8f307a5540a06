package cl

import (
	"strconv"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

const (
	kernelPrefix   = "__kernel void "
	globalQual     = "__global "
	zeroCoord      = "0"
	identityCoord  = "1"
	rowSeparator   = "__"
	lanePrefix     = ".s"
	namePrefix     = "G"
	constantPrefix = "const"
)

// typeName returns the OpenCL spelling of dt with width lanes.
// Width 1 is the scalar spelling.
func typeName(dt ckw.DataType, width int32) string {
	var base string
	switch dt {
	case ckw.DataTypeFp32:
		base = "float"
	case ckw.DataTypeFp16:
		base = "half"
	case ckw.DataTypeInt32:
		base = "int"
	case ckw.DataTypeInt16:
		base = "short"
	case ckw.DataTypeInt8:
		base = "char"
	case ckw.DataTypeUint32:
		base = "uint"
	case ckw.DataTypeUint16:
		base = "ushort"
	case ckw.DataTypeUint8:
		base = "uchar"
	case ckw.DataTypeBool:
		base = "bool"
	default:
		base = "void"
	}
	if width == 1 {
		return base
	}
	return base + strconv.Itoa(int(width))
}

// storageDecl returns the parameter declaration used for a storage.
func storageDecl(s ckw.TensorStorageType) (string, bool) {
	switch s {
	case ckw.StorageBufferUint8Ptr:
		return "__global uchar*", true
	case ckw.StorageTexture2dReadOnly:
		return "__read_only image2d_t", true
	case ckw.StorageTexture2dWriteOnly:
		return "__write_only image2d_t", true
	}
	return "", false
}

// storageSuffix names the storage value relative to its tensor.
func storageSuffix(s ckw.TensorStorageType) string {
	switch s {
	case ckw.StorageBufferUint8Ptr:
		return "_ptr"
	case ckw.StorageTexture2dReadOnly:
		return "_ro_img2d"
	case ckw.StorageTexture2dWriteOnly:
		return "_wo_img2d"
	}
	return "_unknown"
}

// opSpelling is how an operator is written: an infix/prefix token or a call.
type opSpelling struct {
	isFunc bool
	name   string
}

func unarySpelling(op ckw.UnaryOp) (opSpelling, bool) {
	switch op {
	case ckw.UnaryLogicalNot:
		return opSpelling{name: "!"}, true
	case ckw.UnaryBitwiseNot:
		return opSpelling{name: "~"}, true
	case ckw.UnaryNegate:
		return opSpelling{name: "-"}, true
	case ckw.UnaryExp:
		return opSpelling{true, "exp"}, true
	case ckw.UnaryTanh:
		return opSpelling{true, "tanh"}, true
	case ckw.UnarySqrt:
		return opSpelling{true, "sqrt"}, true
	case ckw.UnaryErf:
		return opSpelling{true, "erf"}, true
	case ckw.UnaryFabs:
		return opSpelling{true, "fabs"}, true
	case ckw.UnaryLog:
		return opSpelling{true, "log"}, true
	case ckw.UnaryRound:
		return opSpelling{true, "round"}, true
	}
	return opSpelling{}, false
}

func binarySpelling(op ckw.BinaryOp, dt ckw.DataType) (opSpelling, bool) {
	switch op {
	case ckw.BinaryAdd:
		return opSpelling{name: "+"}, true
	case ckw.BinarySub:
		return opSpelling{name: "-"}, true
	case ckw.BinaryMul:
		return opSpelling{name: "*"}, true
	case ckw.BinaryDiv:
		return opSpelling{name: "/"}, true
	case ckw.BinaryMod:
		if dt.IsFloat() {
			return opSpelling{true, "fmod"}, true
		}
		return opSpelling{name: "%"}, true
	case ckw.BinaryEqual:
		return opSpelling{name: "=="}, true
	case ckw.BinaryLess:
		return opSpelling{name: "<"}, true
	case ckw.BinaryLessEqual:
		return opSpelling{name: "<="}, true
	case ckw.BinaryGreater:
		return opSpelling{name: ">"}, true
	case ckw.BinaryGreaterEqual:
		return opSpelling{name: ">="}, true
	case ckw.BinaryLogicalAnd:
		return opSpelling{name: "&&"}, true
	case ckw.BinaryLogicalOr:
		return opSpelling{name: "||"}, true
	case ckw.BinaryBitwiseXOR:
		return opSpelling{name: "^"}, true
	case ckw.BinaryMin:
		if dt.IsFloat() {
			return opSpelling{true, "fmin"}, true
		}
		return opSpelling{true, "min"}, true
	case ckw.BinaryMax:
		if dt.IsFloat() {
			return opSpelling{true, "fmax"}, true
		}
		return opSpelling{true, "max"}, true
	}
	return opSpelling{}, false
}

func ternarySpelling(op ckw.TernaryOp) (string, bool) {
	switch op {
	case ckw.TernarySelect:
		return "select", true
	case ckw.TernaryClamp:
		return "clamp", true
	}
	return "", false
}

// hexDigit renders a lane index in the OpenCL swizzle alphabet.
func hexDigit(i int32) string {
	return strconv.FormatInt(int64(i), 16)
}

// decomposeWidth splits w into supported vector widths, largest first.
func decomposeWidth(w int32) []int32 {
	var parts []int32
	for _, p := range []int32{16, 8, 4, 3, 2, 1} {
		for w >= p {
			parts = append(parts, p)
			w -= p
		}
	}
	return parts
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// joinLines concatenates fragments into one source line.
func joinLines(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	return b.String()
}
