package cl

import (
	"fmt"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

// TileVariable is a reference to (part of) a tile row in the emitted source.
type TileVariable struct {
	Str      string
	DataType ckw.DataType
	Len      int32
}

// Tile is a named rows x lanes quantity. A constant tile carries its literals
// instead of a declaration.
type Tile struct {
	name   string
	info   ckw.TileInfo
	values [][]string
}

func newTile(name string, info ckw.TileInfo) *Tile {
	return &Tile{name: name, info: info}
}

func newConstantTile(name string, data ckw.ConstantData) *Tile {
	return &Tile{name: name, info: data.Info(), values: data.Values}
}

// Name returns the fully qualified tile name.
func (t *Tile) Name() string { return t.name }

// Info returns the tile shape and type.
func (t *Tile) Info() ckw.TileInfo { return t.info }

// IsConstant reports whether the tile is a literal block.
func (t *Tile) IsConstant() bool { return t.values != nil }

// Scalar returns one lane. Out-of-range indices clamp to the nearest edge,
// which callers rely on for border replication.
func (t *Tile) Scalar(row, col int32) TileVariable {
	row = clamp(row, 0, t.info.Height-1)
	col = clamp(col, 0, t.info.Width-1)

	if t.IsConstant() {
		return TileVariable{Str: t.values[row][col], DataType: t.info.DataType, Len: 1}
	}

	str := t.rowName(row)
	if t.info.Width != 1 {
		str += lanePrefix + hexDigit(col)
	}
	return TileVariable{Str: str, DataType: t.info.DataType, Len: 1}
}

// Vector returns a full row, clamped on row.
func (t *Tile) Vector(row int32) TileVariable {
	row = clamp(row, 0, t.info.Height-1)

	if t.IsConstant() {
		return TileVariable{Str: t.constantVector(row, 0, t.info.Width), DataType: t.info.DataType, Len: t.info.Width}
	}
	return TileVariable{Str: t.rowName(row), DataType: t.info.DataType, Len: t.info.Width}
}

// SubVector returns width lanes of a row starting at colStart.
func (t *Tile) SubVector(row, colStart, width int32) (TileVariable, error) {
	if !ckw.IsSupportedVectorWidth(width) {
		return TileVariable{}, ckw.Violation("tile_vector", ckw.ErrUnsupportedWidth, fmt.Sprintf("width %d", width))
	}
	if colStart < 0 || colStart+width > t.info.Width {
		return TileVariable{}, ckw.Violation("tile_vector", ckw.ErrShapeMismatch,
			fmt.Sprintf("lanes [%d, %d) outside %s width %d", colStart, colStart+width, t.name, t.info.Width))
	}
	row = clamp(row, 0, t.info.Height-1)

	if t.IsConstant() {
		return TileVariable{Str: t.constantVector(row, colStart, width), DataType: t.info.DataType, Len: width}, nil
	}

	str := t.rowName(row)
	if t.info.Width != 1 && !(colStart == 0 && width == t.info.Width) {
		var b strings.Builder
		b.WriteString(lanePrefix)
		for i := int32(0); i < width; i++ {
			b.WriteString(hexDigit(colStart + i))
		}
		str += b.String()
	}
	return TileVariable{Str: str, DataType: t.info.DataType, Len: width}, nil
}

// All returns one full-row reference per row, rebuilt on every call.
func (t *Tile) All() []TileVariable {
	vars := make([]TileVariable, 0, t.info.Height)
	for row := int32(0); row < t.info.Height; row++ {
		vars = append(vars, t.Vector(row))
	}
	return vars
}

func (t *Tile) rowName(row int32) string {
	if t.info.Height == 1 {
		return t.name
	}
	return fmt.Sprintf("%s%s%d", t.name, rowSeparator, row)
}

func (t *Tile) constantVector(row, colStart, width int32) string {
	vals := t.values[row][colStart : colStart+width]
	if width == 1 {
		return vals[0]
	}
	return "((" + typeName(t.info.DataType, width) + ")(" + strings.Join(vals, ", ") + "))"
}
