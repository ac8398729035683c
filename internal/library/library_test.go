package library

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.animlib"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testProject() *Project {
	s := testutil.MixamoSkeleton("Clips")
	s.Tracks = []*anim.Track{
		{Name: "TPose", Lane: 0, Start: 1, End: 2, Clip: testutil.WalkClip("TPose", 2)},
		{Name: "Run-loop", Lane: 1, Start: 1, End: 4, Loop: true, Clip: testutil.WalkClip("Run-loop", 4)},
	}
	return &Project{
		Skeleton:  s,
		Sources:   []Source{{Name: "TPose", Checksum: "aa"}, {Name: "Run-loop", Checksum: "bb"}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"meta", "bones", "attachments", "tracks", "curves", "keyframes", "sources"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestWriteReadProject(t *testing.T) {
	db := testDB(t)
	want := testProject()
	if err := db.WriteProject(want); err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	got, err := db.ReadProject()
	if err != nil {
		t.Fatalf("ReadProject: %v", err)
	}
	s := got.Skeleton
	if s.Name != "Clips" || !s.Transform.ApproxEqual(want.Skeleton.Transform) {
		t.Errorf("skeleton = %q %v", s.Name, s.Transform)
	}
	if len(s.Bones) != len(want.Skeleton.Bones) {
		t.Fatalf("bones = %d, want %d", len(s.Bones), len(want.Skeleton.Bones))
	}
	for i, b := range s.Bones {
		wb := want.Skeleton.Bones[i]
		if b.Name != wb.Name || b.Head != wb.Head || b.Tail != wb.Tail || b.RotationMode != wb.RotationMode {
			t.Errorf("bone %d = %+v, want %+v", i, b, wb)
		}
		if (wb.Parent == nil) != (b.Parent == nil) || (b.Parent != nil && b.Parent.Name != wb.Parent.Name) {
			t.Errorf("bone %q parent mismatch", b.Name)
		}
	}
	if len(s.Attachments) != 1 || s.Attachments[0].Name != "Body" {
		t.Errorf("attachments = %+v", s.Attachments)
	}
	if len(s.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(s.Tracks))
	}
	run := s.Tracks[1]
	if run.Name != "Run-loop" || run.Lane != 1 || !run.Loop || run.Start != 1 || run.End != 4 {
		t.Errorf("track = %+v", run)
	}
	if run.Clip.FPS != 30 || len(run.Clip.Curves) != 4 {
		t.Fatalf("clip fps = %v curves = %d", run.Clip.FPS, len(run.Clip.Curves))
	}
	for i, c := range run.Clip.Curves {
		wc := want.Skeleton.Tracks[1].Clip.Curves[i]
		if c.Path != wc.Path || len(c.Keys) != len(wc.Keys) {
			t.Fatalf("curve %d = %s (%d keys), want %s (%d keys)", i, c.Path, len(c.Keys), wc.Path, len(wc.Keys))
		}
		for k := range c.Keys {
			if c.Keys[k] != wc.Keys[k] {
				t.Errorf("%s key %d = %+v, want %+v", c.Path, k, c.Keys[k], wc.Keys[k])
			}
		}
	}
	if len(got.Sources) != 2 || got.Sources[0].Name != "Run-loop" {
		t.Errorf("sources = %+v", got.Sources)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestWriteProjectReplaces(t *testing.T) {
	db := testDB(t)
	p := testProject()
	if err := db.WriteProject(p); err != nil {
		t.Fatal(err)
	}
	p.Skeleton.Tracks = p.Skeleton.Tracks[:1]
	if err := db.WriteProject(p); err != nil {
		t.Fatalf("second WriteProject: %v", err)
	}
	tracks, err := db.Tracks()
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Name != "TPose" || tracks[0].Curves != 4 {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := testStore()
	path := filepath.Join(t.TempDir(), "out", "Clips.animlib")
	if err := st.Save(path, testProject()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	p, err := st.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Skeleton.Tracks) != 2 {
		t.Errorf("tracks = %d", len(p.Skeleton.Tracks))
	}

	sum, err := st.Summarize(path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Skeleton != "Clips" || sum.Bones != 5 || len(sum.Tracks) != 2 || len(sum.Sources) != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.Tracks[1].Loop || sum.Tracks[0].Loop {
		t.Errorf("loop flags = %v %v", sum.Tracks[0].Loop, sum.Tracks[1].Loop)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.animlib")
	if _, err := testStore().Load(path); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Load must not create the file")
	}
}

func TestWriteProjectRequiresSkeleton(t *testing.T) {
	if err := testDB(t).WriteProject(&Project{}); err == nil {
		t.Error("expected error")
	}
}

func TestNonFiniteRestPoseRejected(t *testing.T) {
	p := testProject()
	p.Skeleton.Bones[0].Head = mgl64.Vec3{math.NaN(), 0, 0}
	if err := testDB(t).WriteProject(p); err == nil {
		t.Error("WriteProject: expected error")
	}

	path := filepath.Join(t.TempDir(), "Clips.animlib")
	if err := testStore().Save(path, p); err == nil {
		t.Fatal("Save: expected error")
	}
	for _, f := range []string{path, path + ".tmp"} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("%s left behind after failed save", filepath.Base(f))
		}
	}
}
