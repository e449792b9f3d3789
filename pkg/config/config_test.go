package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	data := "[link]\ninputs = [\"lib\", \"app\"]\nshared-pool = true\n\n[output]\ncompress = false\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Link.SharedPool {
		t.Fatal("shared-pool not read")
	}
	if !cfg.Link.Relocatable || !cfg.Link.VerifyMembers {
		t.Fatal("defaults lost for keys absent from the file")
	}
	if cfg.Output.Compress {
		t.Fatal("compress = true, want false")
	}
	if cfg.Output.Image != "out.rimg" {
		t.Fatalf("image = %q, want %q", cfg.Output.Image, "out.rimg")
	}
	paths := cfg.InputPaths()
	if len(paths) != 2 || paths[0] != filepath.Join(dir, "lib") {
		t.Fatalf("InputPaths = %v", paths)
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("[link\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	cfg := Default()
	cfg.Link.Inputs = []string{"/abs/classes"}
	cfg.Link.KeepUnknownAttributes = true
	cfg.Output.LinkMap = ""
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Link.KeepUnknownAttributes || got.Output.LinkMap != "" {
		t.Fatalf("round trip = %+v", got)
	}
	if p := got.InputPaths()[0]; p != "/abs/classes" {
		t.Fatalf("absolute input rewritten to %q", p)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want only %s", len(entries), FileName)
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	cfg := Default()
	cfg.Output.Image = "rom.rimg"
	if err := Write(filepath.Join(root, FileName), cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if got.Output.Image != "rom.rimg" {
		t.Fatalf("image = %q, want rom.rimg", got.Output.Image)
	}
	if got.Resolve(got.Output.Image) != filepath.Join(root, "rom.rimg") {
		t.Fatalf("Resolve = %q", got.Resolve(got.Output.Image))
	}
}
