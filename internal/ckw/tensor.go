package ckw

import "fmt"

// DynamicDim marks a tensor dimension that is only known at dispatch time.
const DynamicDim int32 = -1

// MaxTensorRank is the number of dimensions a TensorShape carries.
const MaxTensorRank = 5

// TensorShape holds up to five dimensions, innermost first.
type TensorShape [MaxTensorRank]int32

// NewTensorShape builds a shape from the given dims; missing trailing dims are 1.
func NewTensorShape(dims ...int32) TensorShape {
	s := TensorShape{1, 1, 1, 1, 1}
	copy(s[:], dims)
	return s
}

// Static returns the value of dim i and whether it is known at generation time.
func (s TensorShape) Static(i int) (int32, bool) {
	if i < 0 || i >= MaxTensorRank {
		return 0, false
	}
	if s[i] == DynamicDim {
		return 0, false
	}
	return s[i], true
}

// TensorDataLayout describes how the logical dims map onto memory.
type TensorDataLayout int

const (
	TensorLayoutUnknown TensorDataLayout = iota
	TensorLayoutNHWC
	TensorLayoutNDHWC
)

func (l TensorDataLayout) String() string {
	switch l {
	case TensorLayoutNHWC:
		return "nhwc"
	case TensorLayoutNDHWC:
		return "ndhwc"
	}
	return "unknown"
}

// TensorInfo is the pre-validated description of a kernel tensor.
type TensorInfo struct {
	ID       int32
	Shape    TensorShape
	DataType DataType
	Layout   TensorDataLayout
}

func (t TensorInfo) String() string {
	return fmt.Sprintf("tensor#%d %s %v %s", t.ID, t.DataType, t.Shape, t.Layout)
}

// TensorStorageType is the physical storage a kernel argument binds to.
type TensorStorageType int

const (
	StorageUnknown TensorStorageType = iota
	StorageBufferUint8Ptr
	StorageTexture2dReadOnly
	StorageTexture2dWriteOnly
)

func (s TensorStorageType) String() string {
	switch s {
	case StorageBufferUint8Ptr:
		return "buffer_uint8_ptr"
	case StorageTexture2dReadOnly:
		return "texture2d_read_only"
	case StorageTexture2dWriteOnly:
		return "texture2d_write_only"
	}
	return "unknown"
}

// TensorComponentType names an auxiliary scalar of a tensor argument.
type TensorComponentType int

const (
	ComponentUnknown TensorComponentType = iota
	ComponentOffsetFirstElement
	ComponentStride0
	ComponentStride1
	ComponentStride2
	ComponentStride3
	ComponentStride4
	ComponentDim0
	ComponentDim1
	ComponentDim2
	ComponentDim3
	ComponentDim4
	ComponentDim1xDim2
	ComponentDim2xDim3
	ComponentDim1xDim2xDim3
)

var componentNames = map[TensorComponentType]string{
	ComponentOffsetFirstElement: "offset_first_element",
	ComponentStride0:            "stride0",
	ComponentStride1:            "stride1",
	ComponentStride2:            "stride2",
	ComponentStride3:            "stride3",
	ComponentStride4:            "stride4",
	ComponentDim0:               "dim0",
	ComponentDim1:               "dim1",
	ComponentDim2:               "dim2",
	ComponentDim3:               "dim3",
	ComponentDim4:               "dim4",
	ComponentDim1xDim2:          "dim1xdim2",
	ComponentDim2xDim3:          "dim2xdim3",
	ComponentDim1xDim2xDim3:     "dim1xdim2xdim3",
}

func (c TensorComponentType) String() string {
	if n, ok := componentNames[c]; ok {
		return n
	}
	return "unknown"
}

// IsDimension reports whether the component is a (possibly folded) dimension.
func (c TensorComponentType) IsDimension() bool {
	return c >= ComponentDim0 && c <= ComponentDim1xDim2xDim3
}

// StaticValue folds the component against shape. Only dimensions fold.
func (c TensorComponentType) StaticValue(shape TensorShape) (int32, bool) {
	fold := func(dims ...int) (int32, bool) {
		v := int32(1)
		for _, d := range dims {
			n, ok := shape.Static(d)
			if !ok {
				return 0, false
			}
			v *= n
		}
		return v, true
	}
	switch c {
	case ComponentDim0:
		return fold(0)
	case ComponentDim1:
		return fold(1)
	case ComponentDim2:
		return fold(2)
	case ComponentDim3:
		return fold(3)
	case ComponentDim4:
		return fold(4)
	case ComponentDim1xDim2:
		return fold(1, 2)
	case ComponentDim2xDim3:
		return fold(2, 3)
	case ComponentDim1xDim2xDim3:
		return fold(1, 2, 3)
	}
	return 0, false
}

// ParseTensorStorageType is the inverse of TensorStorageType.String.
func ParseTensorStorageType(name string) (TensorStorageType, bool) {
	for _, s := range []TensorStorageType{StorageBufferUint8Ptr, StorageTexture2dReadOnly, StorageTexture2dWriteOnly} {
		if s.String() == name {
			return s, true
		}
	}
	return StorageUnknown, false
}

// ParseTensorComponentType is the inverse of TensorComponentType.String.
func ParseTensorComponentType(name string) (TensorComponentType, bool) {
	for c, n := range componentNames {
		if n == name {
			return c, true
		}
	}
	return ComponentUnknown, false
}
