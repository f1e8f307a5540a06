package recipe

import (
	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/ckw/cl"
	"github.com/23skdu/longbow-kernelwriter/internal/config"
)

// Add is dst = lhs + rhs over fp32 buffers, TileHeight x 4 elements per work-item.
func Add(cfg config.WriterConfig) (*ckw.Kernel, error) {
	return run(cfg, func(w *cl.KernelWriter) {
		h := cfg.TileHeight
		lhs := tensor(w, "lhs", 0, ckw.DataTypeFp32, dynamic)
		rhs := tensor(w, "rhs", 1, ckw.DataTypeFp32, dynamic)
		dst := tensor(w, "dst", 2, ckw.DataTypeFp32, dynamic)

		ckw.Check(w.OpComment("dst = lhs + rhs"))
		x, y, b := coords(w, 4, h)
		zero := constInt(w, 0)

		a := tile(w, "a", ckw.DataTypeFp32, h, 4)
		c := tile(w, "b", ckw.DataTypeFp32, h, 4)
		load := bufferSampler(ckw.AddressModeYClampToBorderMaxOnly)
		ckw.Check(w.OpLoad(a, lhs, load, x, y, zero, b))
		ckw.Check(w.OpLoad(c, rhs, load, x, y, zero, b))
		ckw.Check(w.OpBinary(a, ckw.BinaryAdd, a, c))
		ckw.Check(w.OpStore(dst, a, load, x, y, zero, b))
	})
}

// MatMul is dst[m][n] = sum_k lhs[m][k] * rhs[n][k]. lhs is K x M and rhs
// is K x N (already transposed), both with K innermost. Each work-item
// computes a TileHeight x 4 block of dst. The K loop steps by 4 with no
// tail, so K must be a multiple of 4.
func MatMul(cfg config.WriterConfig) (*ckw.Kernel, error) {
	return run(cfg, func(w *cl.KernelWriter) {
		const kStep = 4
		h := cfg.TileHeight
		lhs := tensor(w, "lhs", 0, ckw.DataTypeFp32, dynamic)
		rhs := tensor(w, "rhs", 1, ckw.DataTypeFp32, dynamic)
		dst := tensor(w, "dst", 2, ckw.DataTypeFp32, dynamic)

		n0, m0, b := coords(w, 4, h)
		zero := constInt(w, 0)

		acc := tile(w, "acc", ckw.DataTypeFp32, h, 4)
		ckw.Check(w.OpAssign(acc, ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]float32{{0}}, ckw.DataTypeFp32)))))

		a := tile(w, "lhs_tile", ckw.DataTypeFp32, h, kStep)
		bt := tile(w, "rhs_tile", ckw.DataTypeFp32, 4, kStep)
		k := tile(w, "k", ckw.DataTypeInt32, 1, 1)
		ckw.Check(w.OpAssign(k, zero))
		kDim := ckw.Must(w.TensorComponent(lhs, ckw.ComponentDim0))

		load := bufferSampler(ckw.AddressModeYNone)
		ckw.Check(w.OpForLoop(k, ckw.BinaryLess, kDim, k, ckw.AssignIncrement, constInt(w, kStep), func() error {
			if err := w.OpLoad(a, lhs, load, k, m0, zero, b); err != nil {
				return err
			}
			if err := w.OpLoad(bt, rhs, load, k, n0, zero, b); err != nil {
				return err
			}
			return w.OpBinary(acc, ckw.BinaryMatMulNtT, a, bt)
		}))

		ckw.Check(w.OpStore(dst, acc, bufferSampler(ckw.AddressModeYClampToBorderMaxOnly), n0, m0, zero, b))
	})
}

// Cast converts an int32 buffer to uint8 with saturation.
func Cast(cfg config.WriterConfig) (*ckw.Kernel, error) {
	return run(cfg, func(w *cl.KernelWriter) {
		h := cfg.TileHeight
		src := tensor(w, "src", 0, ckw.DataTypeInt32, dynamic)
		dst := tensor(w, "dst", 1, ckw.DataTypeUint8, dynamic)

		x, y, b := coords(w, 4, h)
		zero := constInt(w, 0)
		in := tile(w, "in", ckw.DataTypeInt32, h, 4)
		out := tile(w, "out", ckw.DataTypeUint8, h, 4)

		s := bufferSampler(ckw.AddressModeYNone)
		ckw.Check(w.OpLoad(in, src, s, x, y, zero, b))
		ckw.Check(w.OpCast(out, in, ckw.ConvertSaturate))
		ckw.Check(w.OpStore(dst, out, s, x, y, zero, b))
	})
}

// ScaleImage multiplies the RGB channels of an fp32 image by one half and
// keeps alpha.
func ScaleImage(cfg config.WriterConfig) (*ckw.Kernel, error) {
	return run(cfg, func(w *cl.KernelWriter) {
		h := cfg.TileHeight
		src := tensor(w, "src", 0, ckw.DataTypeFp32, dynamic)
		dst := tensor(w, "dst", 1, ckw.DataTypeFp32, dynamic)

		x, y, b := coords(w, 4, h)
		zero := constInt(w, 0)
		scale := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]float32{{0.5, 0.5, 0.5, 1}}, ckw.DataTypeFp32)))
		px := tile(w, "px", ckw.DataTypeFp32, h, 4)

		read := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dReadOnly)
		read.AddressModeY = ckw.AddressModeYClampToBorderMaxOnly
		write := ckw.NewTensorSampler(ckw.SamplerFormatDim0Dim1xDim2_1, ckw.StorageTexture2dWriteOnly)

		ckw.Check(w.OpLoad(px, src, read, x, y, zero, b))
		ckw.Check(w.OpBinary(px, ckw.BinaryMul, px, scale))
		ckw.Check(w.OpStore(dst, px, write, x, y, zero, b))
	})
}

// Relu is dst = max(src, 0) over an fp16 buffer, TileHeight x 8 per work-item.
func Relu(cfg config.WriterConfig) (*ckw.Kernel, error) {
	return run(cfg, func(w *cl.KernelWriter) {
		h := cfg.TileHeight
		src := tensor(w, "src", 0, ckw.DataTypeFp16, dynamic)
		dst := tensor(w, "dst", 1, ckw.DataTypeFp16, dynamic)

		ckw.Check(w.OpComment("relu: max(x, 0)"))
		x, y, b := coords(w, 8, h)
		zero := constInt(w, 0)
		halfZero := ckw.Must(w.DeclareConstantTile(ckw.NewConstantData([][]float32{{0}}, ckw.DataTypeFp16)))
		v := tile(w, "v", ckw.DataTypeFp16, h, 8)

		s := bufferSampler(ckw.AddressModeYSkipLessThanZero)
		ckw.Check(w.OpLoad(v, src, s, x, y, zero, b))
		ckw.Check(w.OpBinary(v, ckw.BinaryMax, v, halfZero))
		ckw.Check(w.OpStore(dst, v, s, x, y, zero, b))
	})
}
