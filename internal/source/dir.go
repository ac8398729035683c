package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/rigmerge/internal/checksum"
)

// Dir implements Collection backed by a local directory.
type Dir struct {
	root string // absolute path to the collection directory
	ext  string
}

// Verify *Dir satisfies Collection at compile time.
var _ Collection = (*Dir)(nil)

// OpenDir opens the collection rooted at root, whose clips carry the file
// extension ext (".bvh"). The directory must already exist.
func OpenDir(root, ext string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root is not a directory: %s", abs)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Dir{root: abs, ext: ext}, nil
}

// Name returns the directory's base name.
func (d *Dir) Name() string {
	return filepath.Base(d.root)
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}

// Ext returns the clip file extension, dot included.
func (d *Dir) Ext() string {
	return d.ext
}

// safePath resolves a relative path against the collection root and rejects
// any result that escapes it (directory traversal).
func (d *Dir) safePath(rel string) (string, error) {
	if rel == "" {
		return d.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("source: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(d.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("source: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) && abs != d.root {
		return "", fmt.Errorf("source: path escapes collection root: %s", rel)
	}
	return abs, nil
}

// ListClipNames returns the names of the clip files directly under the root,
// extension stripped, in directory order (sorted by file name). Matching on
// the extension is case-sensitive; subdirectories are not scanned.
func (d *Dir) ListClipNames() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("source: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), d.ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), d.ext)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// ClipPath returns the absolute path of the clip called name.
func (d *Dir) ClipPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("source: invalid clip name %q", name)
	}
	return d.safePath(name + d.ext)
}

// IsClipFile reports whether path names a clip file directly under the root.
func (d *Dir) IsClipFile(path string) bool {
	return filepath.Dir(path) == d.root && strings.HasSuffix(path, d.ext) &&
		!strings.HasPrefix(filepath.Base(path), ".")
}

// Checksum returns the content digest of the clip file called name.
func (d *Dir) Checksum(name string) (string, error) {
	p, err := d.ClipPath(name)
	if err != nil {
		return "", err
	}
	sum, err := checksum.File(p)
	if err != nil {
		return "", fmt.Errorf("source: %s: %w", name, err)
	}
	return sum, nil
}

// Fingerprint returns the checksum of every clip keyed by clip name. Two equal
// fingerprints mean the collection content is unchanged.
func (d *Dir) Fingerprint() (map[string]string, error) {
	names, err := d.ListClipNames()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		sum, err := d.Checksum(n)
		if err != nil {
			return nil, err
		}
		out[n] = sum
	}
	return out, nil
}
