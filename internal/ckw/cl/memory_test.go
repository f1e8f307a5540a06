package cl

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/config"
	"github.com/23skdu/longbow-kernelwriter/internal/metrics"
)

var dynamicShape = ckw.NewTensorShape(ckw.DynamicDim, ckw.DynamicDim, ckw.DynamicDim, ckw.DynamicDim)

type coords struct {
	x, y, z, b TileOperand
}

func mustTensor(t *testing.T, w *KernelWriter, name string, id int32, dt ckw.DataType, shape ckw.TensorShape) TensorOperand {
	t.Helper()
	op, err := w.DeclareTensorArgument(name, ckw.TensorInfo{ID: id, Shape: shape, DataType: dt, Layout: ckw.TensorLayoutNHWC})
	if err != nil {
		t.Fatalf("declare tensor %s: %v", name, err)
	}
	return op
}

// xyzb declares x, y, z and b coordinate tiles.
func xyzb(t *testing.T, w *KernelWriter) coords {
	return coords{
		x: mustTile(t, w, "x", ckw.DataTypeInt32, 1, 1),
		y: mustTile(t, w, "y", ckw.DataTypeInt32, 1, 1),
		z: mustTile(t, w, "z", ckw.DataTypeInt32, 1, 1),
		b: mustTile(t, w, "b", ckw.DataTypeInt32, 1, 1),
	}
}

// xyZero declares x and y tiles and uses a literal zero for z and b.
func xyZero(t *testing.T, w *KernelWriter) coords {
	zero := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{0}}, ckw.DataTypeInt32)))
	return coords{
		x: mustTile(t, w, "x", ckw.DataTypeInt32, 1, 1),
		y: mustTile(t, w, "y", ckw.DataTypeInt32, 1, 1),
		z: zero,
		b: zero,
	}
}

func TestBufferLoadAddress(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 2, 4)
	c := xyzb(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageBufferUint8Ptr)

	before := testutil.ToFloat64(metrics.MemoryOps.WithLabelValues("buffer_uint8_ptr", "load"))
	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	want := "G0__dst__0 = vload4(0, (__global float*)(G0__src_ptr + (G0__x) * sizeof(float) + (G0__y) * G0__src_stride1 + (G0__z) * G0__src_stride2 + (G0__b) * G0__src_stride3));\n" +
		"G0__dst__1 = vload4(0, (__global float*)(G0__src_ptr + (G0__x) * sizeof(float) + (G0__y + 1) * G0__src_stride1 + (G0__z) * G0__src_stride2 + (G0__b) * G0__src_stride3));\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
	if delta := testutil.ToFloat64(metrics.MemoryOps.WithLabelValues("buffer_uint8_ptr", "load")) - before; delta != 1 {
		t.Errorf("expected 1 buffer load recorded, got %v", delta)
	}

	arg := ckw.Must(w.TensorArgument(src))
	wantComponents := []ckw.TensorComponentType{ckw.ComponentStride1, ckw.ComponentStride2, ckw.ComponentStride3}
	gotComponents := arg.Components()
	if len(gotComponents) != len(wantComponents) {
		t.Fatalf("expected components %v, got %v", wantComponents, gotComponents)
	}
	for i := range wantComponents {
		if gotComponents[i] != wantComponents[i] {
			t.Errorf("component %d: expected %s, got %s", i, wantComponents[i], gotComponents[i])
		}
	}
}

func TestBufferLoadClampY(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeY = ckw.AddressModeYClampToBorderMaxOnly

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	want := "if(G0__y < G0__src_dim1xdim2)\n{\n" +
		"G0__dst = vload4(0, (__global float*)(G0__src_ptr + (G0__x) * sizeof(float) + (G0__y) * G0__src_stride1));\n" +
		"}\nelse\n{\nG0__dst = 0;\n}\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBufferDimsByValue(t *testing.T) {
	cfg := config.DefaultWriter()
	cfg.ReturnDimsByValue = true
	w := NewKernelWriter(cfg)
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, ckw.NewTensorShape(ckw.DynamicDim, 3, 2, 1))
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeY = ckw.AddressModeYClampToBorderMaxOnly

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	if !strings.HasPrefix(got, "if(G0__y < 6)\n{\n") {
		t.Errorf("expected the folded dim as a literal, got %q", got)
	}

	dim1 := mustResolve(t, w, ckw.Must(w.TensorComponent(src, ckw.ComponentDim1)))
	if !dim1.IsConstant() || dim1.Scalar(0, 0).Str != "3" {
		t.Errorf("expected dim1 to fold to 3, got %s", dim1.Scalar(0, 0).Str)
	}
	dim0 := mustResolve(t, w, ckw.Must(w.TensorComponent(src, ckw.ComponentDim0)))
	if dim0.IsConstant() || dim0.Name() != "G0__src_dim0" {
		t.Errorf("expected dynamic dim0 to stay an argument, got %s", dim0.Name())
	}

	k := ckw.Must(w.EmitKernel(""))
	want := []ckw.KernelArgument{
		ckw.StorageArgument(0, ckw.StorageBufferUint8Ptr),
		ckw.ComponentArgument(0, ckw.ComponentStride1),
		ckw.ComponentArgument(0, ckw.ComponentDim0),
	}
	if len(k.Arguments) != len(want) {
		t.Fatalf("expected %v, got %v", want, k.Arguments)
	}
	for i := range want {
		if k.Arguments[i] != want[i] {
			t.Errorf("argument %d: expected %s, got %s", i, want[i], k.Arguments[i])
		}
	}
}

func TestBufferStoreSkipLessThanZero(t *testing.T) {
	w := newTestWriter()
	dstT := mustTensor(t, w, "dst", 1, ckw.DataTypeFp32, dynamicShape)
	src := mustTile(t, w, "src", ckw.DataTypeFp32, 1, 1)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeY = ckw.AddressModeYSkipLessThanZero

	got := appended(t, w, func() error { return w.OpStore(dstT, src, sampler, c.x, c.y, c.z, c.b) })
	want := "if(G0__y >= 0)\n{\n" +
		"*((__global float*)(G0__dst_ptr + (G0__x) * sizeof(float) + (G0__y) * G0__dst_stride1)) = G0__src;\n" +
		"}\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBufferLoadClampZ(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp16, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp16, 1, 2)
	zero := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{0}}, ckw.DataTypeInt32)))
	c := xyzb(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeZ = ckw.AddressModeZClampToBorderMaxOnly

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, zero) })
	want := "if(G0__z < G0__src_dim2)\n{\n" +
		"G0__dst = vload2(0, (__global half*)(G0__src_ptr + (G0__x) * sizeof(half) + (G0__y) * G0__src_stride1 + (G0__z) * G0__src_stride2));\n" +
		"}\nelse\n{\nG0__dst = 0;\n}\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBufferOverlappingMin(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, ckw.NewTensorShape(15, ckw.DynamicDim, ckw.DynamicDim, ckw.DynamicDim))
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 8)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeX = ckw.AddressModeXOverlappingMin

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	want := "if(G0__x > 0)\n{\n" +
		"G0__dst = vload8(0, (__global float*)(G0__src_ptr + (G0__x) * sizeof(float) + (G0__y) * G0__src_stride1));\n" +
		"}\nelse\n{\n" +
		"G0__dst.s0123 = vload4(0, (__global float*)(G0__src_ptr + (G0__x) * sizeof(float) + (G0__y) * G0__src_stride1));\n" +
		"G0__dst.s456 = vload3(0, (__global float*)(G0__src_ptr + (G0__x + 4) * sizeof(float) + (G0__y) * G0__src_stride1));\n" +
		"}\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestBufferOverlappingMinDivisible(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, ckw.NewTensorShape(16, ckw.DynamicDim))
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 8)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)
	sampler.AddressModeX = ckw.AddressModeXOverlappingMin

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	if strings.Contains(got, "if(") {
		t.Errorf("expected no x guard when dim0 divides the width, got %q", got)
	}
}

func TestLoadDilated(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 2, 4)
	c := xyZero(t, w)
	one := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{1}}, ckw.DataTypeInt32)))
	dil := mustTile(t, w, "dil", ckw.DataTypeInt32, 1, 1)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)

	got := appended(t, w, func() error { return w.OpLoadDilated(dst, src, sampler, c.x, c.y, c.z, c.b, one, dil) })
	if !strings.Contains(got, "(G0__y + 1 * G0__dil) * G0__src_stride1") {
		t.Errorf("expected the second row to step by the dilation, got %q", got)
	}

	if err := w.OpLoadDilated(dst, src, sampler, c.x, c.y, c.z, c.b, dil, one); !errors.Is(err, ckw.ErrUnimplemented) {
		t.Errorf("expected x dilation to be unimplemented, got %v", err)
	}
}

func TestLoadIndirect(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 2, 4)
	c := xyZero(t, w)
	rows := mustTile(t, w, "rows", ckw.DataTypeInt32, 2, 1)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr)

	got := appended(t, w, func() error { return w.OpLoadIndirect(dst, src, sampler, c.x, rows, c.z, c.b) })
	for _, frag := range []string{"(G0__rows__0) * G0__src_stride1", "(G0__rows__1) * G0__src_stride1"} {
		if !strings.Contains(got, frag) {
			t.Errorf("expected %q in %q", frag, got)
		}
	}
}

func TestMemoryOpRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, w *KernelWriter) error
		kind  error
	}{
		{
			name: "unknown storage",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageUnknown), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrUnsupportedStorage,
		},
		{
			name: "tile type differs from tensor",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp16, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageBufferUint8Ptr), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrTypeMismatch,
		},
		{
			name: "float coordinate",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				fx := mustTile(t, w, "fx", ckw.DataTypeFp32, 1, 1)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageBufferUint8Ptr), fx, c.y, c.z, c.b)
			},
			kind: ckw.ErrTypeMismatch,
		},
		{
			name: "float dilation y",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 2, 4)
				c := xyZero(t, w)
				one := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{1}}, ckw.DataTypeInt32)))
				dy := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]float32{{2.5}}, ckw.DataTypeFp32)))
				return w.OpLoadDilated(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr),
					c.x, c.y, c.z, c.b, one, dy)
			},
			kind: ckw.ErrTypeMismatch,
		},
		{
			name: "float dilation x",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				one := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]int32{{1}}, ckw.DataTypeInt32)))
				dx := mustTile(t, w, "dx", ckw.DataTypeFp32, 1, 1)
				return w.OpStoreDilated(src, dst, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageBufferUint8Ptr),
					c.x, c.y, c.z, c.b, dx, one)
			},
			kind: ckw.ErrTypeMismatch,
		},
		{
			name: "unknown format",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatUnknown, ckw.StorageBufferUint8Ptr), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrInvalidOperation,
		},
		{
			name: "image width",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 2)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dReadOnly), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrUnsupportedWidth,
		},
		{
			name: "image load from write-only",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dWriteOnly), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrInvalidOperation,
		},
		{
			name: "image integer type",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeInt32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeInt32, 1, 4)
				c := xyZero(t, w)
				return w.OpLoad(dst, src, ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dReadOnly), c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrTypeMismatch,
		},
		{
			name: "image overlapping x",
			setup: func(t *testing.T, w *KernelWriter) error {
				src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
				dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
				c := xyZero(t, w)
				s := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dReadOnly)
				s.AddressModeX = ckw.AddressModeXOverlappingMin
				return w.OpLoad(dst, src, s, c.x, c.y, c.z, c.b)
			},
			kind: ckw.ErrUnimplemented,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWriter()
			err := tt.setup(t, w)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if strings.Contains(w.Body(), "vload") || strings.Contains(w.Body(), "read_image") {
				t.Errorf("expected no access emitted, got %q", w.Body())
			}
		})
	}
}

func TestImage2dLoad(t *testing.T) {
	w := newTestWriter()
	src := mustTensor(t, w, "src", 0, ckw.DataTypeFp32, dynamicShape)
	dst := mustTile(t, w, "dst", ckw.DataTypeFp32, 1, 4)
	c := xyZero(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dReadOnly)

	got := appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	want := "G0__dst = read_imagef(G0__src_ro_img2d, CLK_NORMALIZED_COORDS_FALSE | CLK_ADDRESS_NONE | CLK_FILTER_NEAREST, (int2)((G0__x) >> 2, (G0__y)));\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}

	sampler.AddressModeY = ckw.AddressModeYClampToBorderMaxOnly
	got = appended(t, w, func() error { return w.OpLoad(dst, src, sampler, c.x, c.y, c.z, c.b) })
	if !strings.Contains(got, "CLK_ADDRESS_CLAMP") {
		t.Errorf("expected the clamping sampler, got %q", got)
	}

	k := ckw.Must(w.EmitKernel("img"))
	if len(k.Arguments) != 1 || k.Arguments[0] != ckw.StorageArgument(0, ckw.StorageTexture2dReadOnly) {
		t.Errorf("expected only the read-only image argument, got %v", k.Arguments)
	}
}

func TestImage2dStore(t *testing.T) {
	w := newTestWriter()
	dstT := mustTensor(t, w, "dst", 2, ckw.DataTypeFp16, dynamicShape)
	src := mustTile(t, w, "src", ckw.DataTypeFp16, 2, 4)
	c := xyzb(t, w)
	sampler := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1Dim2, ckw.StorageTexture2dWriteOnly)

	got := appended(t, w, func() error { return w.OpStore(dstT, src, sampler, c.x, c.y, c.z, c.b) })
	want := "write_imageh(G0__dst_wo_img2d, (int2)((G0__x) >> 2, (G0__y + (G0__z) * G0__dst_dim1 + (G0__b) * G0__dst_dim1 * G0__dst_dim2)), G0__src__0);\n" +
		"write_imageh(G0__dst_wo_img2d, (int2)((G0__x) >> 2, (G0__y + 1 + (G0__z) * G0__dst_dim1 + (G0__b) * G0__dst_dim1 * G0__dst_dim2)), G0__src__1);\n"
	if got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}
