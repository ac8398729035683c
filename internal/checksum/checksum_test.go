package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderKnownDigest(t *testing.T) {
	got, err := Reader(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
}

func TestFileMatchesReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.bvh")
	if err := os.WriteFile(path, []byte("HIERARCHY"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	b, _ := Reader(strings.NewReader("HIERARCHY"))
	if a != b {
		t.Errorf("File = %s, Reader = %s", a, b)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error")
	}
}
