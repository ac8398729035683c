package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "clips")
	var s sample
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\ncount: 2\n"), &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "clips" || s.Count != 2 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	var s sample
	if err := Load(writeFile(t, "count: -1\n"), &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Name: "default"}
	loaded, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil || loaded {
		t.Fatalf("missing file: loaded = %v, err = %v", loaded, err)
	}
	if s.Name != "default" {
		t.Errorf("defaults changed: %+v", s)
	}

	loaded, err = LoadOptional(writeFile(t, "name: file\n"), &s)
	if err != nil || !loaded || s.Name != "file" {
		t.Errorf("existing file: loaded = %v, err = %v, s = %+v", loaded, err, s)
	}

	bad := sample{Count: -1}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}
