package ckw

import "fmt"

// DataType is the scalar element kind of a tile or tensor.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeFp32
	DataTypeFp16
	DataTypeInt32
	DataTypeInt16
	DataTypeInt8
	DataTypeUint32
	DataTypeUint16
	DataTypeUint8
	DataTypeBool
)

func (d DataType) String() string {
	switch d {
	case DataTypeFp32:
		return "fp32"
	case DataTypeFp16:
		return "fp16"
	case DataTypeInt32:
		return "int32"
	case DataTypeInt16:
		return "int16"
	case DataTypeInt8:
		return "int8"
	case DataTypeUint32:
		return "uint32"
	case DataTypeUint16:
		return "uint16"
	case DataTypeUint8:
		return "uint8"
	case DataTypeBool:
		return "bool"
	case DataTypeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// IsFloat reports whether d is a floating-point type.
func (d DataType) IsFloat() bool {
	return d == DataTypeFp32 || d == DataTypeFp16
}

// IsInteger reports whether d is a signed or unsigned integer type.
func (d DataType) IsInteger() bool {
	switch d {
	case DataTypeInt32, DataTypeInt16, DataTypeInt8, DataTypeUint32, DataTypeUint16, DataTypeUint8:
		return true
	}
	return false
}

// Size returns the element size in bytes, 0 for unknown.
func (d DataType) Size() int {
	switch d {
	case DataTypeFp32, DataTypeInt32, DataTypeUint32:
		return 4
	case DataTypeFp16, DataTypeInt16, DataTypeUint16:
		return 2
	case DataTypeInt8, DataTypeUint8, DataTypeBool:
		return 1
	}
	return 0
}

// MaskType is the signed integer type of the same size as d. It is the
// element type of a vector comparison or logical result.
func (d DataType) MaskType() DataType {
	switch d.Size() {
	case 4:
		return DataTypeInt32
	case 2:
		return DataTypeInt16
	case 1:
		return DataTypeInt8
	}
	return DataTypeUnknown
}
