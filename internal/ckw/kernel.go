package ckw

import "fmt"

// TargetLanguage tags the dialect of the generated source.
type TargetLanguage int

const (
	TargetUnknown TargetLanguage = iota
	TargetOpenCL
)

func (t TargetLanguage) String() string {
	if t == TargetOpenCL {
		return "opencl"
	}
	return "unknown"
}

// KernelArgumentType says which half of a KernelArgument is meaningful.
type KernelArgumentType int

const (
	ArgumentTensorStorage KernelArgumentType = iota
	ArgumentTensorComponent
)

func (t KernelArgumentType) String() string {
	if t == ArgumentTensorComponent {
		return "component"
	}
	return "storage"
}

// KernelArgument is one positional parameter of the emitted kernel.
// Launchers bind by position, so the order in Kernel.Arguments is the contract.
type KernelArgument struct {
	TensorID  int32
	Type      KernelArgumentType
	Storage   TensorStorageType
	Component TensorComponentType
}

// StorageArgument returns a storage kernel argument.
func StorageArgument(tensorID int32, s TensorStorageType) KernelArgument {
	return KernelArgument{TensorID: tensorID, Type: ArgumentTensorStorage, Storage: s}
}

// ComponentArgument returns a component kernel argument.
func ComponentArgument(tensorID int32, c TensorComponentType) KernelArgument {
	return KernelArgument{TensorID: tensorID, Type: ArgumentTensorComponent, Component: c}
}

// Kind returns the storage or component name, whichever applies.
func (a KernelArgument) Kind() string {
	if a.Type == ArgumentTensorComponent {
		return a.Component.String()
	}
	return a.Storage.String()
}

func (a KernelArgument) String() string {
	return fmt.Sprintf("tensor#%d:%s:%s", a.TensorID, a.Type, a.Kind())
}

// Kernel is the finished artifact: source text plus the binding order.
type Kernel struct {
	TargetLanguage TargetLanguage
	Arguments      []KernelArgument
	SourceCode     string
}
