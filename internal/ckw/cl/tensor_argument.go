package cl

import "github.com/23skdu/longbow-kernelwriter/internal/ckw"

// TensorStorage is one raw parameter fragment of a tensor: its declaration
// type and the value name used in the body.
type TensorStorage struct {
	Type ckw.TensorStorageType
	Val  string
}

// TensorComponent is an auxiliary scalar parameter (stride, dim, offset).
type TensorComponent struct {
	Type ckw.TensorComponentType
	tile int32
}

// TensorArgument is a tensor's kernel-parameter view. Storages and
// components are kept in order of first use; that order is the argument order.
type TensorArgument struct {
	name        string
	info        ckw.TensorInfo
	dimsByValue bool

	storages       []TensorStorage
	components     []TensorComponent
	componentTiles map[ckw.TensorComponentType]int32
}

func newTensorArgument(name string, info ckw.TensorInfo, dimsByValue bool) *TensorArgument {
	return &TensorArgument{
		name:           name,
		info:           info,
		dimsByValue:    dimsByValue,
		componentTiles: make(map[ckw.TensorComponentType]int32),
	}
}

func (t *TensorArgument) Name() string         { return t.name }
func (t *TensorArgument) Info() ckw.TensorInfo { return t.info }

// Storages returns a copy of the storages registered so far.
func (t *TensorArgument) Storages() []TensorStorage {
	return append([]TensorStorage(nil), t.storages...)
}

// Components returns the component types registered as parameters so far.
func (t *TensorArgument) Components() []ckw.TensorComponentType {
	out := make([]ckw.TensorComponentType, len(t.components))
	for i, c := range t.components {
		out[i] = c.Type
	}
	return out
}

// storage returns the value name of s, registering it on first use.
func (t *TensorArgument) storage(s ckw.TensorStorageType) string {
	for _, st := range t.storages {
		if st.Type == s {
			return st.Val
		}
	}
	val := t.name + storageSuffix(s)
	t.storages = append(t.storages, TensorStorage{Type: s, Val: val})
	return val
}

func componentNameOf(c ckw.TensorComponentType) (string, bool) {
	n := c.String()
	return n, c != ckw.ComponentUnknown && n != "unknown"
}
