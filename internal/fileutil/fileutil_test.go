package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")

	if err := os.WriteFile(src, []byte("cover"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileMode(src, dst, 0o644); err != nil {
		t.Fatalf("CopyFileMode: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "cover" {
		t.Fatalf("got %q, want %q", got, "cover")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("mode = %o, want 644", info.Mode().Perm())
	}
}

func TestCopyFileModeRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileMode(src, dst, 0o644); err == nil {
		t.Fatal("expected error for existing destination")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "old" {
		t.Fatalf("existing destination modified: %q", got)
	}
}

func TestCopyFileMode_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.jpg")
	if err := CopyFileMode(filepath.Join(dir, "nope"), dst, 0o644); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
}

func TestLinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "isbn_1_L.jpg")
	dst := filepath.Join(dir, "q_abc_L.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LinkOrCopy(src, dst); err != nil {
		t.Fatalf("LinkOrCopy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "jpeg" {
		t.Fatalf("got %q", got)
	}
}

func TestTempName(t *testing.T) {
	dir := t.TempDir()
	name, err := TempName(dir, ".alias-*.tmp")
	if err != nil {
		t.Fatalf("TempName: %v", err)
	}
	if filepath.Dir(name) != dir || !strings.HasPrefix(filepath.Base(name), ".alias-") || !strings.HasSuffix(name, ".tmp") {
		t.Fatalf("unexpected name %q", name)
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Fatalf("reserved name should not exist on disk, stat err=%v", err)
	}
}
