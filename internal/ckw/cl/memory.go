package cl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/metrics"
)

// memoryHelper emits one load or store of a whole tile. Implementations
// write into a scratch buffer owned by the caller; nothing reaches the
// kernel body unless every step succeeds.
type memoryHelper interface {
	initialize(t *Tile, x, z, b TileVariable) error
	writeRow(row int32, coordY string) error
	finalize() error
}

type memoryRequest struct {
	op      string
	kind    ckw.MemoryOperation
	tile    TileOperand
	tensor  TensorOperand
	sampler ckw.TensorSampler

	x, y, z, batch       TileOperand
	dilationX, dilationY *TileOperand
	indirect             bool
}

// OpLoad reads a tile from tensor at (x, y + row, z, batch).
func (w *KernelWriter) OpLoad(dst TileOperand, tensor TensorOperand, sampler ckw.TensorSampler, x, y, z, batch TileOperand) error {
	return w.memoryOp(memoryRequest{
		op: "op_load", kind: ckw.MemoryLoad, tile: dst, tensor: tensor, sampler: sampler,
		x: x, y: y, z: z, batch: batch,
	})
}

// OpLoadDilated reads rows spaced dilationY apart.
func (w *KernelWriter) OpLoadDilated(dst TileOperand, tensor TensorOperand, sampler ckw.TensorSampler,
	x, y, z, batch, dilationX, dilationY TileOperand) error {
	return w.memoryOp(memoryRequest{
		op: "op_load_dilated", kind: ckw.MemoryLoad, tile: dst, tensor: tensor, sampler: sampler,
		x: x, y: y, z: z, batch: batch, dilationX: &dilationX, dilationY: &dilationY,
	})
}

// OpLoadIndirect reads row i from the y coordinate held in yIndirect's row i.
func (w *KernelWriter) OpLoadIndirect(dst TileOperand, tensor TensorOperand, sampler ckw.TensorSampler, x, yIndirect, z, batch TileOperand) error {
	return w.memoryOp(memoryRequest{
		op: "op_load_indirect", kind: ckw.MemoryLoad, tile: dst, tensor: tensor, sampler: sampler,
		x: x, y: yIndirect, z: z, batch: batch, indirect: true,
	})
}

// OpStore writes src to tensor at (x, y + row, z, batch).
func (w *KernelWriter) OpStore(tensor TensorOperand, src TileOperand, sampler ckw.TensorSampler, x, y, z, batch TileOperand) error {
	return w.memoryOp(memoryRequest{
		op: "op_store", kind: ckw.MemoryStore, tile: src, tensor: tensor, sampler: sampler,
		x: x, y: y, z: z, batch: batch,
	})
}

// OpStoreDilated writes rows spaced dilationY apart.
func (w *KernelWriter) OpStoreDilated(tensor TensorOperand, src TileOperand, sampler ckw.TensorSampler,
	x, y, z, batch, dilationX, dilationY TileOperand) error {
	return w.memoryOp(memoryRequest{
		op: "op_store_dilated", kind: ckw.MemoryStore, tile: src, tensor: tensor, sampler: sampler,
		x: x, y: y, z: z, batch: batch, dilationX: &dilationX, dilationY: &dilationY,
	})
}

func (w *KernelWriter) memoryOp(req memoryRequest) error {
	op := req.op
	if err := w.begin(op); err != nil {
		return err
	}
	arg, err := w.TensorArgument(req.tensor)
	if err != nil {
		return w.fail(relabel(op, err))
	}
	tiles, err := w.resolve(op, req.tile, req.x, req.y, req.z, req.batch)
	if err != nil {
		return w.fail(err)
	}
	t, x, y, z, b := tiles[0], tiles[1], tiles[2], tiles[3], tiles[4]

	if req.kind == ckw.MemoryLoad {
		if err := checkWritable(op, t); err != nil {
			return w.fail(err)
		}
	}
	if t.info.DataType != arg.info.DataType {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch,
			fmt.Sprintf("tile %s is %s, tensor %s is %s", t.name, t.info.DataType, arg.name, arg.info.DataType)))
	}
	for _, c := range []*Tile{x, y, z, b} {
		if !c.info.DataType.IsInteger() {
			return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("coordinate %s is %s, want an integer type", c.name, c.info.DataType)))
		}
	}

	dilationY := identityCoord
	if req.dilationX != nil {
		dil, err := w.resolve(op, *req.dilationX, *req.dilationY)
		if err != nil {
			return w.fail(err)
		}
		for _, d := range dil {
			if !d.info.DataType.IsInteger() {
				return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("dilation %s is %s, want an integer type", d.name, d.info.DataType)))
			}
		}
		if dx := dil[0].Scalar(0, 0).Str; dx != identityCoord {
			return w.fail(ckw.Violation(op, ckw.ErrUnimplemented, fmt.Sprintf("dilation along x (%s)", dx)))
		}
		dilationY = dil[1].Scalar(0, 0).Str
	}

	mapper, err := newTensorMapper(w, arg, req.sampler.Format)
	if err != nil {
		return w.fail(relabel(op, err))
	}

	var code strings.Builder
	helper, err := w.newMemoryHelper(req.kind, mapper, req.sampler, &code)
	if err != nil {
		return w.fail(relabel(op, err))
	}
	if err := helper.initialize(t, x.Scalar(0, 0), z.Scalar(0, 0), b.Scalar(0, 0)); err != nil {
		return w.fail(relabel(op, err))
	}
	for row := int32(0); row < t.info.Height; row++ {
		if err := helper.writeRow(row, rowCoordinate(req.indirect, y, row, dilationY)); err != nil {
			return w.fail(relabel(op, err))
		}
	}
	if err := helper.finalize(); err != nil {
		return w.fail(relabel(op, err))
	}

	w.appendCode(op, code.String())
	metrics.RecordMemoryOp(req.sampler.Storage.String(), req.kind.String())
	return nil
}

// newMemoryHelper picks the emission strategy for a storage type.
func (w *KernelWriter) newMemoryHelper(kind ckw.MemoryOperation, m *tensorMapper, sampler ckw.TensorSampler, out *strings.Builder) (memoryHelper, error) {
	switch sampler.Storage {
	case ckw.StorageBufferUint8Ptr:
		return &bufferHelper{kind: kind, mapper: m, sampler: sampler, out: out}, nil
	case ckw.StorageTexture2dReadOnly, ckw.StorageTexture2dWriteOnly:
		return &image2dHelper{kind: kind, mapper: m, sampler: sampler, out: out}, nil
	}
	return nil, ckw.Violation("memory_op", ckw.ErrUnsupportedStorage, sampler.Storage.String())
}

// rowCoordinate is the y coordinate of one tile row.
func rowCoordinate(indirect bool, y *Tile, row int32, dilation string) string {
	if indirect {
		return y.Scalar(row, 0).Str
	}
	base := y.Scalar(0, 0).Str
	if row == 0 {
		return base
	}
	r := strconv.Itoa(int(row))
	if dilation == identityCoord {
		return base + " + " + r
	}
	return base + " + " + r + " * " + dilation
}

// tensorMapper folds a tensor's dims and strides onto the x/y/z/batch
// axes of a sampler format. Looking up a name registers the component.
type tensorMapper struct {
	w      *KernelWriter
	arg    *TensorArgument
	format ckw.TensorSamplerFormat
}

func newTensorMapper(w *KernelWriter, arg *TensorArgument, format ckw.TensorSamplerFormat) (*tensorMapper, error) {
	switch format {
	case ckw.SamplerFormatDim0Dim1xDim2_1, ckw.SamplerFormatDim0Dim1Dim2:
		return &tensorMapper{w: w, arg: arg, format: format}, nil
	}
	return nil, ckw.Violation("memory_op", ckw.ErrInvalidOperation, "sampler format "+format.String())
}

func (m *tensorMapper) dimYComponent() ckw.TensorComponentType {
	if m.format == ckw.SamplerFormatDim0Dim1xDim2_1 {
		return ckw.ComponentDim1xDim2
	}
	return ckw.ComponentDim1
}

// zFolded reports whether z is the constant 1 in this format.
func (m *tensorMapper) zFolded() bool {
	return m.format == ckw.SamplerFormatDim0Dim1xDim2_1
}

func (m *tensorMapper) name(c ckw.TensorComponentType) (string, error) {
	handle, err := m.w.component(m.arg, c)
	if err != nil {
		return "", err
	}
	return m.w.tiles[handle.index].Scalar(0, 0).Str, nil
}

func (m *tensorMapper) dimX() (string, error) { return m.name(ckw.ComponentDim0) }
func (m *tensorMapper) dimY() (string, error) { return m.name(m.dimYComponent()) }

func (m *tensorMapper) dimZ() (string, error) {
	if m.zFolded() {
		return identityCoord, nil
	}
	return m.name(ckw.ComponentDim2)
}

func (m *tensorMapper) strideY() (string, error)     { return m.name(ckw.ComponentStride1) }
func (m *tensorMapper) strideZ() (string, error)     { return m.name(ckw.ComponentStride2) }
func (m *tensorMapper) strideBatch() (string, error) { return m.name(ckw.ComponentStride3) }

// staticDimX is the x extent when the shape fixes it.
func (m *tensorMapper) staticDimX() (int32, bool) {
	return ckw.ComponentDim0.StaticValue(m.arg.info.Shape)
}

func (m *tensorMapper) isOne(c ckw.TensorComponentType) bool {
	v, ok := c.StaticValue(m.arg.info.Shape)
	return ok && v == 1
}

func (m *tensorMapper) isDimXOne() bool { return m.isOne(ckw.ComponentDim0) }
func (m *tensorMapper) isDimYOne() bool { return m.isOne(m.dimYComponent()) }
func (m *tensorMapper) isDimZOne() bool { return m.zFolded() || m.isOne(ckw.ComponentDim2) }
func (m *tensorMapper) isBatchOne() bool {
	return m.isOne(ckw.ComponentDim3)
}
