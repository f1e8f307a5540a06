package ckw

// TensorSamplerFormat selects how tensor dims fold onto the x/y/z/batch axes.
type TensorSamplerFormat int

const (
	SamplerFormatUnknown TensorSamplerFormat = iota
	// SamplerFormatDim0Dim1xDim2_1 folds dim1 and dim2 into y; z is 1.
	SamplerFormatDim0Dim1xDim2_1
	// SamplerFormatDim0Dim1Dim2 maps dims one to one.
	SamplerFormatDim0Dim1Dim2
)

func (f TensorSamplerFormat) String() string {
	switch f {
	case SamplerFormatDim0Dim1xDim2_1:
		return "dim0_dim1xdim2_1"
	case SamplerFormatDim0Dim1Dim2:
		return "dim0_dim1_dim2"
	}
	return "unknown"
}

// AddressModeX is the out-of-bound policy along x.
type AddressModeX int

const (
	AddressModeXNone AddressModeX = iota
	// AddressModeXOverlappingMin shifts the first block so it covers the ragged columns.
	AddressModeXOverlappingMin
)

// AddressModeY is the out-of-bound policy along y.
type AddressModeY int

const (
	AddressModeYNone AddressModeY = iota
	AddressModeYClampToBorderMaxOnly
	AddressModeYSkipLessThanZero
)

// AddressModeZ is the out-of-bound policy along z.
type AddressModeZ int

const (
	AddressModeZNone AddressModeZ = iota
	AddressModeZClampToBorderMaxOnly
	AddressModeZSkipLessThanZero
)

// TensorSampler selects the storage strategy and addressing policy for a memory op.
type TensorSampler struct {
	Format       TensorSamplerFormat
	Storage      TensorStorageType
	AddressModeX AddressModeX
	AddressModeY AddressModeY
	AddressModeZ AddressModeZ
}

// NewTensorSampler returns a sampler with no out-of-bound handling.
func NewTensorSampler(format TensorSamplerFormat, storage TensorStorageType) TensorSampler {
	return TensorSampler{Format: format, Storage: storage}
}
