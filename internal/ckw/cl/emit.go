package cl

import (
	"fmt"
	"strings"
	"time"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
	"github.com/23skdu/longbow-kernelwriter/internal/config"
	"github.com/23skdu/longbow-kernelwriter/internal/logger"
	"github.com/23skdu/longbow-kernelwriter/internal/metrics"
)

// EmitKernel assembles the signature and body into the final kernel. An
// empty name falls back to the configured kernel name. The writer accepts
// no further calls afterwards.
func (w *KernelWriter) EmitKernel(name string) (*ckw.Kernel, error) {
	const op = "emit_kernel"
	if err := w.begin(op); err != nil {
		return nil, err
	}
	if name == "" {
		name = w.cfg.KernelName
	}
	if !config.IsIdentifier(name) {
		return nil, w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("kernel name %q is not an identifier", name)))
	}

	var params strings.Builder
	var args []ckw.KernelArgument
	for _, t := range w.tensors {
		for _, s := range t.storages {
			decl, ok := storageDecl(s.Type)
			if !ok {
				return nil, w.fail(ckw.Violation(op, ckw.ErrUnsupportedStorage, s.Type.String()))
			}
			params.WriteString(joinLines(decl, " ", s.Val, ",\n"))
			args = append(args, ckw.StorageArgument(t.info.ID, s.Type))
		}
		for _, c := range t.components {
			params.WriteString(joinLines(typeName(ckw.DataTypeInt32, 1), " ", w.tiles[c.tile].name, ",\n"))
			args = append(args, ckw.ComponentArgument(t.info.ID, c.Type))
		}
	}

	signature := params.String()
	if strings.HasSuffix(signature, ",\n") {
		signature = strings.TrimSuffix(signature, ",\n") + "\n"
	}

	var src strings.Builder
	src.WriteString(joinLines(kernelPrefix, name, "\n(\n"))
	src.WriteString(signature)
	src.WriteString(")\n{\n")
	src.WriteString(w.body.String())
	src.WriteString("}\n")

	w.state = StateEmitted
	k := &ckw.Kernel{
		TargetLanguage: w.cfg.TargetLanguage(),
		Arguments:      args,
		SourceCode:     src.String(),
	}

	metrics.RecordKernelEmitted(k.TargetLanguage.String(), len(k.SourceCode), len(args), time.Since(w.created))
	logger.Log.Debug("kernel emitted",
		"name", name,
		"arguments", len(args),
		"body_lines", w.lines,
		"source_bytes", len(k.SourceCode))
	return k, nil
}
