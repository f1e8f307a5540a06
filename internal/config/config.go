package config

import (
	"fmt"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

type WriterConfig struct {
	// KernelName is used by EmitKernel when no explicit name is given.
	KernelName string
	// IDSpace is the initial id used to qualify declared names (G<id>__name).
	IDSpace int32

	// ReturnDimsByValue folds statically known tensor dims into literals
	// instead of kernel arguments.
	ReturnDimsByValue bool
	EmitComments      bool

	// TileHeight is the row count recipes use for their working tiles.
	TileHeight int32
}

type Config struct {
	Writer WriterConfig

	LogLevel  string
	LogFormat string
}

func (c *WriterConfig) Validate() error {
	if c.KernelName == "" {
		return fmt.Errorf("invalid kernel_name: must not be empty")
	}
	if !IsIdentifier(c.KernelName) {
		return fmt.Errorf("invalid kernel_name: %q (must be a C identifier)", c.KernelName)
	}
	if c.IDSpace < 0 {
		return fmt.Errorf("invalid id_space: %d (must be non-negative)", c.IDSpace)
	}
	if c.TileHeight < 1 || c.TileHeight > 16 {
		return fmt.Errorf("invalid tile_height: %d (must be in [1, 16])", c.TileHeight)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Writer.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}
	return nil
}

// TargetLanguage is fixed for this writer.
func (c *WriterConfig) TargetLanguage() ckw.TargetLanguage {
	return ckw.TargetOpenCL
}

// IsIdentifier reports whether s is a valid C identifier.
func IsIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func DefaultWriter() WriterConfig {
	return WriterConfig{
		KernelName: "ckw_kernel",
		TileHeight: 4,
	}
}

func Default() Config {
	return Config{
		Writer:    DefaultWriter(),
		LogLevel:  "info",
		LogFormat: "console",
	}
}
