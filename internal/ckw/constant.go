package ckw

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/x448/float16"
)

// ConstantValue is the set of Go types a constant tile can be built from.
type ConstantValue interface {
	~int32 | ~float32 | ~bool
}

// ConstantData is a rectangular block of literals, already rendered as
// kernel source text for its data type.
type ConstantData struct {
	DataType DataType
	Values   [][]string
}

// NewConstantData renders rows as literals of type dt.
func NewConstantData[T ConstantValue](rows [][]T, dt DataType) ConstantData {
	values := lo.Map(rows, func(row []T, _ int) []string {
		return lo.Map(row, func(v T, _ int) string {
			return FormatLiteral(any(v), dt)
		})
	})
	return ConstantData{DataType: dt, Values: values}
}

// Info returns the tile shape the data occupies.
func (c ConstantData) Info() TileInfo {
	h := int32(len(c.Values))
	var w int32
	if h > 0 {
		w = int32(len(c.Values[0]))
	}
	return TileInfo{DataType: c.DataType, Height: h, Width: w}
}

// Validate checks that the block is rectangular with a supported width.
func (c ConstantData) Validate() error {
	info := c.Info()
	if err := info.Validate(); err != nil {
		return err
	}
	for i, row := range c.Values {
		if int32(len(row)) != info.Width {
			return Violation("constant_data", ErrInvalidShape, fmt.Sprintf("row %d has %d values, want %d", i, len(row), info.Width))
		}
	}
	return nil
}

// FormatLiteral renders v as an OpenCL literal of type dt.
func FormatLiteral(v any, dt DataType) string {
	var f float64
	var b bool
	switch x := v.(type) {
	case int32:
		f, b = float64(x), x != 0
	case float32:
		f, b = float64(x), x != 0
	case bool:
		b = x
		if x {
			f = 1
		}
	case int:
		f, b = float64(x), x != 0
	case float64:
		f, b = x, x != 0
	default:
		return fmt.Sprint(v)
	}

	switch {
	case dt == DataTypeBool:
		if b {
			return "1"
		}
		return "0"
	case dt == DataTypeFp16:
		return formatFloat(float16.Fromfloat32(float32(f)).Float32())
	case dt.IsFloat():
		return formatFloat(float32(f))
	default:
		return strconv.FormatInt(int64(f), 10)
	}
}

func formatFloat(v float32) string {
	switch {
	case math.IsNaN(float64(v)):
		return "NAN"
	case math.IsInf(float64(v), 1):
		return "INFINITY"
	case math.IsInf(float64(v), -1):
		return "-INFINITY"
	}
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + "f"
}
