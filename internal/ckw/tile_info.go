package ckw

import (
	"fmt"

	"github.com/samber/lo"
)

// SupportedVectorWidths are the vector lane counts the OpenCL target accepts.
var SupportedVectorWidths = []int32{1, 2, 3, 4, 8, 16}

// IsSupportedVectorWidth reports whether w is a valid vector lane count.
func IsSupportedVectorWidth(w int32) bool {
	return lo.Contains(SupportedVectorWidths, w)
}

// TileInfo describes the shape (rows x vector lanes) and element type of a tile.
type TileInfo struct {
	DataType DataType
	Height   int32
	Width    int32
}

// NewTileInfo returns a TileInfo with the given type, height and width.
func NewTileInfo(dt DataType, height, width int32) TileInfo {
	return TileInfo{DataType: dt, Height: height, Width: width}
}

// Validate checks the tile shape and returns a ContractError on failure.
func (t TileInfo) Validate() error {
	if t.Height < 1 {
		return Violation("tile_info", ErrInvalidShape, fmt.Sprintf("height %d must be >= 1", t.Height))
	}
	if !IsSupportedVectorWidth(t.Width) {
		return Violation("tile_info", ErrUnsupportedWidth, fmt.Sprintf("width %d not in %v", t.Width, SupportedVectorWidths))
	}
	if t.DataType == DataTypeUnknown {
		return Violation("tile_info", ErrTypeMismatch, "data type is unknown")
	}
	return nil
}

// IsScalar reports whether the tile holds a single element.
func (t TileInfo) IsScalar() bool {
	return t.Height == 1 && t.Width == 1
}

func (t TileInfo) String() string {
	return fmt.Sprintf("%s[%dx%d]", t.DataType, t.Height, t.Width)
}
