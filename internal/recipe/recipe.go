// Package recipe holds named kernel builders used by the CLI and as
// end-to-end exercises of the writer.
package recipe

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/ckw/cl"
	"github.com/23skdu/longbow-kernelwriter/internal/config"
	"github.com/23skdu/longbow-kernelwriter/internal/logger"
)

// Builder produces one kernel from a writer configuration.
type Builder func(cfg config.WriterConfig) (*ckw.Kernel, error)

var registry = map[string]Builder{
	"add":         Add,
	"matmul":      MatMul,
	"cast":        Cast,
	"scale_image": ScaleImage,
	"relu":        Relu,
}

// ErrUnknownRecipe is returned by Build for an unregistered name.
var ErrUnknownRecipe = errors.New("unknown recipe")

// Names returns the registered recipe names in sorted order.
func Names() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Build runs the named recipe.
func Build(name string, cfg config.WriterConfig) (*ckw.Kernel, error) {
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipe, name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid writer config: %w", err)
	}
	logger.Log.Debug("building recipe", "recipe", name, "tile_height", cfg.TileHeight)
	k, err := b(cfg)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", name, err)
	}
	return k, nil
}

// run executes body against a fresh writer and emits the kernel. Bodies
// use ckw.Must/ckw.Check; a contract violation unwinds to here and is
// returned as an error.
func run(cfg config.WriterConfig, body func(w *cl.KernelWriter)) (k *ckw.Kernel, err error) {
	w := cl.NewKernelWriter(cfg)
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			var ce *ckw.ContractError
			if !ok || !errors.As(e, &ce) {
				panic(r)
			}
			k, err = nil, e
		}
	}()
	body(w)
	return w.EmitKernel("")
}

func tile(w *cl.KernelWriter, name string, dt ckw.DataType, h, wd int32) cl.TileOperand {
	return ckw.Must(w.DeclareTile(name, ckw.NewTileInfo(dt, h, wd)))
}

func constInt(w *cl.KernelWriter, v int32) cl.TileOperand {
	return ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{v}}, ckw.DataTypeInt32)))
}

func tensor(w *cl.KernelWriter, name string, id int32, dt ckw.DataType, shape ckw.TensorShape) cl.TensorOperand {
	return ckw.Must(w.DeclareTensorArgument(name, ckw.TensorInfo{ID: id, Shape: shape, DataType: dt, Layout: ckw.TensorLayoutNHWC}))
}

var dynamic = ckw.NewTensorShape(ckw.DynamicDim, ckw.DynamicDim, ckw.DynamicDim, ckw.DynamicDim)

// coords maps the work-item id onto the top-left element of a
// height x width block: x = gid0 * width, y = gid1 * height, batch = gid2.
func coords(w *cl.KernelWriter, width, height int32) (x, y, batch cl.TileOperand) {
	gx := tile(w, "gid_x", ckw.DataTypeInt32, 1, 1)
	gy := tile(w, "gid_y", ckw.DataTypeInt32, 1, 1)
	batch = tile(w, "gid_z", ckw.DataTypeInt32, 1, 1)
	ckw.Check(w.OpGetGlobalID(gx, 0))
	ckw.Check(w.OpGetGlobalID(gy, 1))
	ckw.Check(w.OpGetGlobalID(batch, 2))

	x = tile(w, "x", ckw.DataTypeInt32, 1, 1)
	y = tile(w, "y", ckw.DataTypeInt32, 1, 1)
	ckw.Check(w.OpBinary(x, ckw.BinaryMul, gx, constInt(w, width)))
	ckw.Check(w.OpBinary(y, ckw.BinaryMul, gy, constInt(w, height)))
	return x, y, batch
}

func bufferSampler(y ckw.AddressModeY) ckw.TensorSampler {
	s := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)
	s.AddressModeY = y
	return s
}
