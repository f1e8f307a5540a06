package cl

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/config"
	"github.com/23skdu/longbow-kernelwriter/internal/logger"
	"github.com/23skdu/longbow-kernelwriter/internal/metrics"
)

// State is the writer lifecycle position.
type State int

const (
	StateEmpty State = iota
	StateDeclaring
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDeclaring:
		return "declaring"
	case StateEmitted:
		return "emitted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// writerGen hands out generation ids so handles from one writer never
// resolve against another.
var writerGen atomic.Uint64

// TileOperand is a non-owning handle to a tile in a writer's arena.
type TileOperand struct {
	gen   uint64
	index int32
}

// TensorOperand is a non-owning handle to a tensor argument in a writer's arena.
type TensorOperand struct {
	gen   uint64
	index int32
}

// KernelWriter builds one OpenCL kernel. It is not safe for concurrent use;
// independent writers share nothing but metrics.
type KernelWriter struct {
	cfg     config.WriterConfig
	gen     uint64
	idSpace int32
	state   State
	err     error
	created time.Time

	tiles     []*Tile
	tileNames map[string]int32

	tensors     []*TensorArgument
	tensorNames map[string]int32

	body  strings.Builder
	lines int
}

// NewKernelWriter returns an empty writer.
func NewKernelWriter(cfg config.WriterConfig) *KernelWriter {
	return &KernelWriter{
		cfg:         cfg,
		gen:         writerGen.Add(1),
		idSpace:     cfg.IDSpace,
		created:     time.Now(),
		tileNames:   make(map[string]int32),
		tensorNames: make(map[string]int32),
	}
}

// State returns the lifecycle state.
func (w *KernelWriter) State() State { return w.state }

// Err returns the violation that poisoned the writer, if any.
func (w *KernelWriter) Err() error { return w.err }

// Body returns the body source accumulated so far.
func (w *KernelWriter) Body() string { return w.body.String() }

// IDSpace returns the id used to qualify new names.
func (w *KernelWriter) IDSpace() int32 { return w.idSpace }

// NewIDSpace moves to a fresh id so the next declarations cannot collide
// with earlier ones of the same name.
func (w *KernelWriter) NewIDSpace() int32 {
	w.idSpace++
	return w.idSpace
}

func (w *KernelWriter) fullName(name string) string {
	return fmt.Sprintf("%s%d%s%s", namePrefix, w.idSpace, rowSeparator, name)
}

// begin gates every declare_*/op_* call.
func (w *KernelWriter) begin(op string) error {
	if w.err != nil {
		return w.err
	}
	if w.state == StateEmitted {
		return w.fail(ckw.Violation(op, ckw.ErrKernelEmitted, ""))
	}
	w.state = StateDeclaring
	return nil
}

// fail poisons the writer with the first violation and returns it.
func (w *KernelWriter) fail(err error) error {
	if w.err != nil {
		return w.err
	}
	w.err = err

	var ce *ckw.ContractError
	if errors.As(err, &ce) {
		metrics.RecordContractViolation(ce.Op, ce.KindName())
		logger.Log.Warn("kernel writer contract violation", "op", ce.Op, "kind", ce.KindName(), "detail", ce.Detail)
	} else {
		logger.Log.Warn("kernel writer aborted", "error", err)
	}
	return err
}

func (w *KernelWriter) appendCode(op string, code string) {
	n := strings.Count(code, "\n")
	w.body.WriteString(code)
	w.lines += n
	metrics.RecordOp(op, n)
}

// DeclareTile registers a tile and emits one declaration per row.
func (w *KernelWriter) DeclareTile(name string, info ckw.TileInfo) (TileOperand, error) {
	const op = "declare_tile"
	if err := w.begin(op); err != nil {
		return TileOperand{}, err
	}
	if err := info.Validate(); err != nil {
		return TileOperand{}, w.fail(relabel(op, err))
	}
	if !config.IsIdentifier(name) {
		return TileOperand{}, w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("tile name %q is not an identifier", name)))
	}

	full := w.fullName(name)
	if _, exists := w.tileNames[full]; exists {
		return TileOperand{}, w.fail(ckw.Violation(op, ckw.ErrDuplicateTile, full))
	}

	t := newTile(full, info)
	var b strings.Builder
	decl := typeName(info.DataType, info.Width)
	for _, v := range t.All() {
		b.WriteString(joinLines(decl, " ", v.Str, ";\n"))
	}
	handle := w.addTile(t)
	w.appendCode(op, b.String())
	return handle, nil
}

// DeclareConstantTile registers a literal tile. Nothing is emitted; uses
// of the tile inline its values.
func (w *KernelWriter) DeclareConstantTile(data ckw.ConstantData) (TileOperand, error) {
	const op = "declare_constant_tile"
	if err := w.begin(op); err != nil {
		return TileOperand{}, err
	}
	if err := data.Validate(); err != nil {
		return TileOperand{}, w.fail(relabel(op, err))
	}

	var full string
	for n := len(w.tiles); ; n++ {
		full = w.fullName(fmt.Sprintf("%s%d", constantPrefix, n))
		if _, exists := w.tileNames[full]; !exists {
			break
		}
	}
	return w.addTile(newConstantTile(full, data)), nil
}

// DeclareTensorArgument registers a tensor. Its storages and components
// become kernel parameters only once a memory op or component lookup uses them.
func (w *KernelWriter) DeclareTensorArgument(name string, info ckw.TensorInfo) (TensorOperand, error) {
	const op = "declare_tensor_argument"
	if err := w.begin(op); err != nil {
		return TensorOperand{}, err
	}

	if !config.IsIdentifier(name) {
		return TensorOperand{}, w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("tensor name %q is not an identifier", name)))
	}
	full := w.fullName(name)
	if _, exists := w.tensorNames[full]; exists {
		return TensorOperand{}, w.fail(ckw.Violation(op, ckw.ErrDuplicateTensor, full))
	}

	arg := newTensorArgument(full, info, w.cfg.ReturnDimsByValue)
	idx := int32(len(w.tensors))
	w.tensors = append(w.tensors, arg)
	w.tensorNames[full] = idx

	logger.Log.Debug("tensor argument declared", "name", full, "tensor_id", info.ID, "data_type", info.DataType.String())
	return TensorOperand{gen: w.gen, index: idx}, nil
}

func (w *KernelWriter) addTile(t *Tile) TileOperand {
	idx := int32(len(w.tiles))
	w.tiles = append(w.tiles, t)
	w.tileNames[t.name] = idx
	return TileOperand{gen: w.gen, index: idx}
}

// Tile resolves a handle to the tile it names.
func (w *KernelWriter) Tile(op TileOperand) (*Tile, error) {
	if op.gen != w.gen || op.index < 0 || int(op.index) >= len(w.tiles) {
		return nil, ckw.Violation("resolve_tile", ckw.ErrOperandNotFound, fmt.Sprintf("tile handle %d", op.index))
	}
	return w.tiles[op.index], nil
}

// TensorArgument resolves a handle to the tensor argument it names.
func (w *KernelWriter) TensorArgument(op TensorOperand) (*TensorArgument, error) {
	if op.gen != w.gen || op.index < 0 || int(op.index) >= len(w.tensors) {
		return nil, ckw.Violation("resolve_tensor", ckw.ErrOperandNotFound, fmt.Sprintf("tensor handle %d", op.index))
	}
	return w.tensors[op.index], nil
}

// TensorComponent returns a handle to one auxiliary scalar of a tensor,
// registering it as a kernel argument on first use.
func (w *KernelWriter) TensorComponent(tensor TensorOperand, c ckw.TensorComponentType) (TileOperand, error) {
	const op = "tensor_component"
	if err := w.begin(op); err != nil {
		return TileOperand{}, err
	}
	arg, err := w.TensorArgument(tensor)
	if err != nil {
		return TileOperand{}, w.fail(relabel(op, err))
	}
	handle, err := w.component(arg, c)
	if err != nil {
		return TileOperand{}, w.fail(relabel(op, err))
	}
	return handle, nil
}

// component returns the tile backing c, creating it on first use.
func (w *KernelWriter) component(arg *TensorArgument, c ckw.TensorComponentType) (TileOperand, error) {
	if idx, ok := arg.componentTiles[c]; ok {
		return TileOperand{gen: w.gen, index: idx}, nil
	}
	if _, ok := componentNameOf(c); !ok {
		return TileOperand{}, ckw.Violation("tensor_component", ckw.ErrInvalidOperation, fmt.Sprintf("component %d", int(c)))
	}

	if arg.dimsByValue && c.IsDimension() {
		if v, ok := c.StaticValue(arg.info.Shape); ok {
			data := ckw.NewConstantData([][]int32{{v}}, ckw.DataTypeInt32)
			handle := w.addTile(newConstantTile(arg.name+"_"+c.String(), data))
			arg.componentTiles[c] = handle.index
			return handle, nil
		}
	}

	name := arg.name + "_" + c.String()
	if _, exists := w.tileNames[name]; exists {
		return TileOperand{}, ckw.Violation("tensor_component", ckw.ErrDuplicateTile, name)
	}
	handle := w.addTile(newTile(name, ckw.NewTileInfo(ckw.DataTypeInt32, 1, 1)))
	arg.componentTiles[c] = handle.index
	arg.components = append(arg.components, TensorComponent{Type: c, tile: handle.index})
	return handle, nil
}

// resolve looks up every operand of op, in order.
func (w *KernelWriter) resolve(op string, operands ...TileOperand) ([]*Tile, error) {
	tiles := make([]*Tile, len(operands))
	for i, o := range operands {
		t, err := w.Tile(o)
		if err != nil {
			return nil, relabel(op, err)
		}
		tiles[i] = t
	}
	return tiles, nil
}

// relabel stamps a ContractError with the public operation that raised it.
func relabel(op string, err error) error {
	var ce *ckw.ContractError
	if errors.As(err, &ce) {
		return ckw.Violation(op, ce.Kind, ce.Detail)
	}
	return err
}
