package cl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

// bufferHelper addresses a tensor stored as a raw byte buffer.
type bufferHelper struct {
	kind    ckw.MemoryOperation
	mapper  *tensorMapper
	sampler ckw.TensorSampler
	out     *strings.Builder

	tile     *Tile
	ptr      string
	x, z, b  string
	leftover int32
	pending  []pendingRow
}

// pendingRow is a row whose ragged columns are written in finalize.
type pendingRow struct {
	row    int32
	coordY string
}

func (h *bufferHelper) initialize(t *Tile, x, z, b TileVariable) error {
	h.tile = t
	h.x, h.z, h.b = x.Str, z.Str, b.Str
	h.ptr = h.mapper.arg.storage(h.sampler.Storage)

	if err := h.openZ(); err != nil {
		return err
	}

	if h.sampler.AddressModeX == ckw.AddressModeXOverlappingMin {
		dimX, ok := h.mapper.staticDimX()
		if !ok {
			return ckw.Violation("memory_op", ckw.ErrUnimplemented, "overlapping-min addressing needs a static dim0")
		}
		h.leftover = dimX % t.info.Width
		if h.leftover != 0 {
			h.out.WriteString(joinLines("if(", h.x, " > 0)\n{\n"))
		}
	}
	return nil
}

func (h *bufferHelper) writeRow(row int32, coordY string) error {
	dst := h.tile.Vector(row)
	if err := h.openY(coordY); err != nil {
		return err
	}
	stmt, err := h.access(dst, h.x, coordY)
	if err != nil {
		return err
	}
	h.out.WriteString(stmt)
	h.closeY(dst)

	if h.leftover != 0 {
		h.pending = append(h.pending, pendingRow{row: row, coordY: coordY})
	}
	return nil
}

func (h *bufferHelper) finalize() error {
	if h.leftover != 0 {
		h.out.WriteString("}\nelse\n{\n")
		parts := decomposeWidth(h.leftover)
		for _, p := range h.pending {
			if err := h.openY(p.coordY); err != nil {
				return err
			}
			var col int32
			var fills []TileVariable
			for _, width := range parts {
				sub, err := h.tile.SubVector(p.row, col, width)
				if err != nil {
					return err
				}
				x := h.x
				if col != 0 {
					x = h.x + " + " + strconv.Itoa(int(col))
				}
				stmt, err := h.access(sub, x, p.coordY)
				if err != nil {
					return err
				}
				h.out.WriteString(stmt)
				fills = append(fills, sub)
				col += width
			}
			h.closeY(fills...)
		}
		h.out.WriteString("}\n")
	}
	h.closeZ()
	return nil
}

// access is one vload/vstore (or scalar dereference) of v at (x, y).
func (h *bufferHelper) access(v TileVariable, x, y string) (string, error) {
	addr, err := h.address(x, y)
	if err != nil {
		return "", err
	}
	n := strconv.Itoa(int(v.Len))
	if h.kind == ckw.MemoryLoad {
		if v.Len == 1 {
			return joinLines(v.Str, " = *(", addr, ");\n"), nil
		}
		return joinLines(v.Str, " = vload", n, "(0, ", addr, ");\n"), nil
	}
	if v.Len == 1 {
		return joinLines("*(", addr, ") = ", v.Str, ";\n"), nil
	}
	return joinLines("vstore", n, "(", v.Str, ", 0, ", addr, ");\n"), nil
}

func (h *bufferHelper) address(x, y string) (string, error) {
	m := h.mapper
	elem := typeName(m.arg.info.DataType, 1)

	var b strings.Builder
	b.WriteString("(" + globalQual + elem + "*)(" + h.ptr)
	if x != zeroCoord && !m.isDimXOne() {
		b.WriteString(" + (" + x + ") * sizeof(" + elem + ")")
	}
	if y != zeroCoord && !m.isDimYOne() {
		stride, err := m.strideY()
		if err != nil {
			return "", err
		}
		b.WriteString(" + (" + y + ") * " + stride)
	}
	if h.z != zeroCoord && !m.isDimZOne() {
		stride, err := m.strideZ()
		if err != nil {
			return "", err
		}
		b.WriteString(" + (" + h.z + ") * " + stride)
	}
	if h.b != zeroCoord && !m.isBatchOne() {
		stride, err := m.strideBatch()
		if err != nil {
			return "", err
		}
		b.WriteString(" + (" + h.b + ") * " + stride)
	}
	b.WriteString(")")
	return b.String(), nil
}

func (h *bufferHelper) openY(coordY string) error {
	switch h.sampler.AddressModeY {
	case ckw.AddressModeYNone:
	case ckw.AddressModeYClampToBorderMaxOnly:
		dim, err := h.mapper.dimY()
		if err != nil {
			return err
		}
		h.out.WriteString(joinLines("if(", coordY, " < ", dim, ")\n{\n"))
	case ckw.AddressModeYSkipLessThanZero:
		h.out.WriteString(joinLines("if(", coordY, " >= 0)\n{\n"))
	default:
		return ckw.Violation("memory_op", ckw.ErrUnimplemented, fmt.Sprintf("address mode y %d", int(h.sampler.AddressModeY)))
	}
	return nil
}

// closeY ends the y guard; loads zero the guarded lanes when out of bounds.
func (h *bufferHelper) closeY(vars ...TileVariable) {
	if h.sampler.AddressModeY == ckw.AddressModeYNone {
		return
	}
	h.closeGuard(vars)
}

func (h *bufferHelper) openZ() error {
	switch h.sampler.AddressModeZ {
	case ckw.AddressModeZNone:
	case ckw.AddressModeZClampToBorderMaxOnly:
		dim, err := h.mapper.dimZ()
		if err != nil {
			return err
		}
		h.out.WriteString(joinLines("if(", h.z, " < ", dim, ")\n{\n"))
	case ckw.AddressModeZSkipLessThanZero:
		h.out.WriteString(joinLines("if(", h.z, " >= 0)\n{\n"))
	default:
		return ckw.Violation("memory_op", ckw.ErrUnimplemented, fmt.Sprintf("address mode z %d", int(h.sampler.AddressModeZ)))
	}
	return nil
}

func (h *bufferHelper) closeZ() {
	if h.sampler.AddressModeZ == ckw.AddressModeZNone {
		return
	}
	h.closeGuard(h.tile.All())
}

func (h *bufferHelper) closeGuard(vars []TileVariable) {
	if h.kind == ckw.MemoryStore {
		h.out.WriteString("}\n")
		return
	}
	h.out.WriteString("}\nelse\n{\n")
	for _, v := range vars {
		h.out.WriteString(joinLines(v.Str, " = 0;\n"))
	}
	h.out.WriteString("}\n")
}
