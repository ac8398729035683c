package library

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store saves and loads library files.
type Store struct {
	logger *slog.Logger
}

// NewStore returns a Store logging to logger.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Save writes p to path. The file is built next to path and renamed into
// place, so an existing library is replaced only by a complete one.
func (s *Store) Save(path string, p *Project) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("library: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := write(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("library: rename: %w", err)
	}
	s.logger.Info("library saved",
		slog.String("path", path),
		slog.Int("tracks", len(p.Skeleton.Tracks)),
	)
	return nil
}

func write(path string, p *Project) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	if err := db.WriteProject(p); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// Load reads the library at path.
func (s *Store) Load(path string) (*Project, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.ReadProject()
}

// Summary describes a library without its keyframes.
type Summary struct {
	Skeleton string
	Bones    int
	Tracks   []TrackInfo
	Sources  []Source
}

// Summarize reads the track listing of the library at path.
func (s *Store) Summarize(path string) (*Summary, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := db.meta()
	if err != nil {
		return nil, err
	}
	sum := &Summary{Skeleton: meta["skeleton"]}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM bones`).Scan(&sum.Bones); err != nil {
		return nil, fmt.Errorf("library: count bones: %w", err)
	}
	if sum.Tracks, err = db.Tracks(); err != nil {
		return nil, err
	}
	if sum.Sources, err = db.Sources(); err != nil {
		return nil, err
	}
	return sum, nil
}

func openExisting(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	return Open(path)
}
