// Package manifest serializes a kernel's positional argument table as an
// Arrow IPC stream so a launcher can bind buffers without parsing source.
package manifest

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

const (
	colPosition     = "position"
	colTensorID     = "tensor_id"
	colArgumentType = "argument_type"
	colKind         = "kind"

	metaKernelName = "kernel_name"
	metaTarget     = "target_language"
)

// Manifest is the decoded argument table of one kernel.
type Manifest struct {
	KernelName string
	Target     string
	Arguments  []ckw.KernelArgument
}

// Schema returns the manifest schema with the kernel identity in its metadata.
func Schema(kernelName string, target ckw.TargetLanguage) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{metaKernelName, metaTarget},
		[]string{kernelName, target.String()},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: colPosition, Type: arrow.PrimitiveTypes.Int32},
		{Name: colTensorID, Type: arrow.PrimitiveTypes.Int32},
		{Name: colArgumentType, Type: arrow.BinaryTypes.String},
		{Name: colKind, Type: arrow.BinaryTypes.String},
	}, &md)
}

// Build converts the argument list into a single record. The caller owns
// the returned record and must Release it.
func Build(mem memory.Allocator, kernelName string, k *ckw.Kernel) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema(kernelName, k.TargetLanguage))
	defer b.Release()

	pos := b.Field(0).(*array.Int32Builder)
	ids := b.Field(1).(*array.Int32Builder)
	types := b.Field(2).(*array.StringBuilder)
	kinds := b.Field(3).(*array.StringBuilder)

	for i, arg := range k.Arguments {
		pos.Append(int32(i))
		ids.Append(arg.TensorID)
		types.Append(arg.Type.String())
		kinds.Append(arg.Kind())
	}
	return b.NewRecord()
}

// Write streams the manifest of k to w.
func Write(w io.Writer, kernelName string, k *ckw.Kernel) error {
	mem := memory.NewGoAllocator()
	rec := Build(mem, kernelName, k)
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write manifest record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close manifest stream: %w", err)
	}
	return nil
}

// Read decodes a manifest stream written by Write.
func Read(r io.Reader) (*Manifest, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest stream: %w", err)
	}
	defer reader.Release()

	m := &Manifest{}
	md := reader.Schema().Metadata()
	if i := md.FindKey(metaKernelName); i >= 0 {
		m.KernelName = md.Values()[i]
	}
	if i := md.FindKey(metaTarget); i >= 0 {
		m.Target = md.Values()[i]
	}

	for reader.Next() {
		args, err := decodeRecord(reader.Record(), len(m.Arguments))
		if err != nil {
			return nil, err
		}
		m.Arguments = append(m.Arguments, args...)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read manifest stream: %w", err)
	}
	return m, nil
}

func decodeRecord(rec arrow.Record, offset int) ([]ckw.KernelArgument, error) {
	if rec.NumCols() != 4 {
		return nil, fmt.Errorf("manifest record has %d columns, want 4", rec.NumCols())
	}
	pos, ok1 := rec.Column(0).(*array.Int32)
	ids, ok2 := rec.Column(1).(*array.Int32)
	types, ok3 := rec.Column(2).(*array.String)
	kinds, ok4 := rec.Column(3).(*array.String)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("manifest record has unexpected column types: %s", rec.Schema())
	}

	args := make([]ckw.KernelArgument, 0, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		if int(pos.Value(i)) != offset+i {
			return nil, fmt.Errorf("manifest position %d out of order (want %d)", pos.Value(i), offset+i)
		}
		switch types.Value(i) {
		case ckw.ArgumentTensorStorage.String():
			s, ok := ckw.ParseTensorStorageType(kinds.Value(i))
			if !ok {
				return nil, fmt.Errorf("unknown storage %q at position %d", kinds.Value(i), pos.Value(i))
			}
			args = append(args, ckw.StorageArgument(ids.Value(i), s))
		case ckw.ArgumentTensorComponent.String():
			c, ok := ckw.ParseTensorComponentType(kinds.Value(i))
			if !ok {
				return nil, fmt.Errorf("unknown component %q at position %d", kinds.Value(i), pos.Value(i))
			}
			args = append(args, ckw.ComponentArgument(ids.Value(i), c))
		default:
			return nil, fmt.Errorf("unknown argument type %q at position %d", types.Value(i), pos.Value(i))
		}
	}
	return args, nil
}
