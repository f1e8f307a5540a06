package cl

import (
	"fmt"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

const (
	samplerAddressNone  = "CLK_NORMALIZED_COORDS_FALSE | CLK_ADDRESS_NONE | CLK_FILTER_NEAREST"
	samplerAddressClamp = "CLK_NORMALIZED_COORDS_FALSE | CLK_ADDRESS_CLAMP | CLK_FILTER_NEAREST"
)

// image2dHelper addresses a tensor stored as an RGBA image with one pixel
// per four x elements.
type image2dHelper struct {
	kind    ckw.MemoryOperation
	mapper  *tensorMapper
	sampler ckw.TensorSampler
	out     *strings.Builder

	tile    *Tile
	img     string
	suffix  string
	x, z, b string
}

func (h *image2dHelper) initialize(t *Tile, x, z, b TileVariable) error {
	const op = "memory_op"
	if t.info.Width != 4 {
		return ckw.Violation(op, ckw.ErrUnsupportedWidth, fmt.Sprintf("image2d access needs width 4, got %d", t.info.Width))
	}
	switch t.info.DataType {
	case ckw.DataTypeFp32:
		h.suffix = "f"
	case ckw.DataTypeFp16:
		h.suffix = "h"
	default:
		return ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("image2d access needs fp32 or fp16, got %s", t.info.DataType))
	}
	if h.kind == ckw.MemoryLoad && h.sampler.Storage != ckw.StorageTexture2dReadOnly {
		return ckw.Violation(op, ckw.ErrInvalidOperation, "image2d load needs the read-only storage")
	}
	if h.kind == ckw.MemoryStore && h.sampler.Storage != ckw.StorageTexture2dWriteOnly {
		return ckw.Violation(op, ckw.ErrInvalidOperation, "image2d store needs the write-only storage")
	}
	if h.sampler.AddressModeX != ckw.AddressModeXNone {
		return ckw.Violation(op, ckw.ErrUnimplemented, "image2d address mode x")
	}
	if h.sampler.AddressModeZ != ckw.AddressModeZNone {
		return ckw.Violation(op, ckw.ErrUnimplemented, "image2d address mode z")
	}

	h.tile = t
	h.x, h.z, h.b = x.Str, z.Str, b.Str
	h.img = h.mapper.arg.storage(h.sampler.Storage)
	return nil
}

func (h *image2dHelper) writeRow(row int32, coordY string) error {
	coord, err := h.coordinate(coordY)
	if err != nil {
		return err
	}
	v := h.tile.Vector(row)
	if h.kind == ckw.MemoryLoad {
		h.out.WriteString(joinLines(v.Str, " = read_image", h.suffix, "(", h.img, ", ", h.samplerConstant(), ", ", coord, ");\n"))
		return nil
	}
	h.out.WriteString(joinLines("write_image", h.suffix, "(", h.img, ", ", coord, ", ", v.Str, ");\n"))
	return nil
}

func (h *image2dHelper) finalize() error { return nil }

// coordinate flattens (y, z, b) onto the image row.
func (h *image2dHelper) coordinate(y string) (string, error) {
	m := h.mapper
	var row strings.Builder
	row.WriteString(y)

	zTerm := h.z != zeroCoord && !m.isDimZOne()
	bTerm := h.b != zeroCoord && !m.isBatchOne()
	if zTerm || bTerm {
		dimY, err := m.dimY()
		if err != nil {
			return "", err
		}
		if zTerm {
			row.WriteString(" + (" + h.z + ") * " + dimY)
		}
		if bTerm {
			row.WriteString(" + (" + h.b + ") * " + dimY)
			if !m.isDimZOne() {
				dimZ, err := m.dimZ()
				if err != nil {
					return "", err
				}
				row.WriteString(" * " + dimZ)
			}
		}
	}
	return joinLines("(int2)((", h.x, ") >> 2, (", row.String(), "))"), nil
}

func (h *image2dHelper) samplerConstant() string {
	if h.sampler.AddressModeY == ckw.AddressModeYNone {
		return samplerAddressNone
	}
	return samplerAddressClamp
}
