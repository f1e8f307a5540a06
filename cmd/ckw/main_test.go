package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/23skdu/longbow-kernelwriter/internal/manifest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "add\ncast\nmatmul\nrelu\nscale_image\n" {
		t.Errorf("unexpected recipe list %q", out)
	}
}

func TestGenToStdout(t *testing.T) {
	out, err := execute(t, "gen", "add", "--kernel-name", "vec_add", "--tile-height", "2", "--log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "__kernel void vec_add\n(\n") {
		t.Errorf("expected the vec_add kernel, got %q", out)
	}
	if !strings.Contains(out, "G0__a__1 = G0__a__1 + G0__b__1;\n") {
		t.Errorf("expected two-row tiles, got %q", out)
	}
}

func TestGenWritesFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cast.cl")
	man := filepath.Join(dir, "cast.arrow")

	if _, err := execute(t, "gen", "cast", "--out", src, "--manifest", man, "--log-level", "error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if !strings.Contains(string(code), "convert_uchar4_sat") {
		t.Errorf("expected a saturating cast, got %q", code)
	}

	f, err := os.Open(man)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer f.Close()
	m, err := manifest.Read(f)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if m.KernelName != "ckw_kernel" || len(m.Arguments) != 6 {
		t.Errorf("expected ckw_kernel with 6 arguments, got %s with %d", m.KernelName, len(m.Arguments))
	}
}

func TestGenRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown recipe", []string{"gen", "softmax", "--log-level", "error"}},
		{"bad tile height", []string{"gen", "add", "--tile-height", "0"}},
		{"bad log format", []string{"gen", "add", "--log-format", "xml"}},
		{"missing recipe", []string{"gen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDumpMetrics(t *testing.T) {
	if _, err := execute(t, "gen", "relu", "--log-level", "error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if err := dumpMetrics(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "kernelwriter_kernels_emitted_total") {
		t.Errorf("expected writer metrics, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "go_goroutines") {
		t.Error("expected runtime metrics to be filtered out")
	}
}
