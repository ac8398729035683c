package accumulator

import (
	"errors"
	"testing"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/rootmotion"
	"github.com/starford/rigmerge/internal/testutil"
)

type env struct {
	imp *testutil.Importer
	acc *Accumulator
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	imp := testutil.NewImporter()
	imp.AddWalk("lib/TPose.bvh", 3)
	ref := asset.New("TPose", "lib/TPose.bvh", imp)
	for _, step := range []func() error{ref.Load, ref.Normalize, ref.AddRootBone, ref.BindHipsUnderRoot} {
		if err := step(); err != nil {
			t.Fatalf("prepare reference: %v", err)
		}
	}
	acc, err := New(ref, rootmotion.New(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &env{imp: imp, acc: acc}
}

func (e *env) donor(t *testing.T, name string) *asset.SkeletonAsset {
	t.Helper()
	path := "lib/" + name + ".bvh"
	e.imp.AddWalk(path, 5)
	d := asset.New(name, path, e.imp)
	if err := d.Load(); err != nil {
		t.Fatalf("Load %s: %v", name, err)
	}
	if err := d.Normalize(); err != nil {
		t.Fatalf("Normalize %s: %v", name, err)
	}
	return d
}

func TestNewRequiresRootReady(t *testing.T) {
	imp := testutil.NewImporter()
	imp.AddWalk("lib/TPose.bvh", 2)
	ref := asset.New("TPose", "lib/TPose.bvh", imp)
	_ = ref.Load()
	if _, err := New(ref, rootmotion.New()); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCommitOrderAndLanes(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	for _, name := range []string{"Walk", "Run-loop", "Idle"} {
		if err := e.acc.Accumulate(e.donor(t, name)); err != nil {
			t.Fatalf("Accumulate %s: %v", name, err)
		}
	}

	tracks := e.acc.Tracks()
	want := []string{"TPose", "Walk", "Run-loop", "Idle"}
	if len(tracks) != len(want) {
		t.Fatalf("tracks = %d, want %d", len(tracks), len(want))
	}
	lanes := make(map[int]bool)
	for i, tr := range tracks {
		if tr.Name != want[i] {
			t.Errorf("track %d = %q, want %q", i, tr.Name, want[i])
		}
		if lanes[tr.Lane] {
			t.Errorf("lane %d shared", tr.Lane)
		}
		lanes[tr.Lane] = true
		if tr.Start != 1 {
			t.Errorf("track %q starts at %v, want its own origin 1", tr.Name, tr.Start)
		}
	}
	if !tracks[2].Loop || tracks[1].Loop {
		t.Error("only Run-loop should loop")
	}
	if e.acc.Reference().ActiveClip() != nil {
		t.Error("active slot should be empty after commit")
	}
}

func TestCommittedTracksHaveNoHorizontalHips(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	if err := e.acc.Accumulate(e.donor(t, "Walk")); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	for _, tr := range e.acc.Tracks() {
		for _, axis := range []int{anim.AxisX, anim.AxisZ} {
			if tr.Clip.Curve(anim.Path{Bone: "Hips", Channel: anim.ChannelLocation, Axis: axis}) != nil {
				t.Errorf("track %q still has hip axis %d", tr.Name, axis)
			}
			if tr.Clip.Curve(anim.Path{Bone: "RootMotion", Channel: anim.ChannelLocation, Axis: axis}) == nil {
				t.Errorf("track %q lacks root axis %d", tr.Name, axis)
			}
		}
	}
}

func TestCommitWithoutActiveClip(t *testing.T) {
	e := newEnv(t)
	e.acc.Reference().Skeleton().Active = nil
	tr, err := e.acc.Commit()
	if err != nil || tr != nil {
		t.Fatalf("Commit = %v, %v; want nil, nil", tr, err)
	}
	if len(e.acc.Tracks()) != 0 {
		t.Error("no track expected")
	}
}

func TestCommitUniqueNames(t *testing.T) {
	e := newEnv(t)
	if _, err := e.acc.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	skel := e.acc.Reference().Skeleton()
	for i := 0; i < 3; i++ {
		skel.Active = anim.NewClip("Walk", 30)
		if _, err := e.acc.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	want := []string{"TPose", "Walk", "Walk.001", "Walk.002"}
	got := e.acc.Tracks()
	if len(got) != len(want) {
		t.Fatalf("tracks = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("track %d = %q, want %q", i, got[i].Name, want[i])
		}
	}
}

func TestAbsorbStructuralMismatch(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	e.imp.Add("lib/Alien.bvh", func() (*anim.Skeleton, *anim.Clip, error) {
		s := testutil.MixamoSkeleton("x")
		_ = s.AddBone(&anim.Bone{Name: "Tail"})
		return s, testutil.WalkClip("x", 3), nil
	})
	d := asset.New("Alien", "lib/Alien.bvh", e.imp)
	_ = d.Load()
	_ = d.Normalize()
	err := e.acc.Absorb(d)
	if !errors.Is(err, apperr.ErrStructuralMismatch) {
		t.Fatalf("err = %v, want ErrStructuralMismatch", err)
	}
	if d.Skeleton() == nil {
		t.Error("rejected donor must not be discarded")
	}
	if e.acc.Reference().ActiveClip() != nil {
		t.Error("rejected clip must not be attached")
	}
}

func TestAbsorbUnknownCurveTarget(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	e.imp.Add("lib/Ghost.bvh", func() (*anim.Skeleton, *anim.Clip, error) {
		clip := testutil.WalkClip("x", 3)
		clip.EnsureCurve(anim.Path{Bone: "Ghost", Channel: anim.ChannelLocation}).Insert(1, 0)
		return testutil.MixamoSkeleton("x"), clip, nil
	})
	d := asset.New("Ghost", "lib/Ghost.bvh", e.imp)
	_ = d.Load()
	_ = d.Normalize()
	if err := e.acc.Absorb(d); !errors.Is(err, apperr.ErrStructuralMismatch) {
		t.Fatalf("err = %v, want ErrStructuralMismatch", err)
	}
}

func TestAccumulateMissingHipCurves(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	e.imp.Add("lib/InPlace.bvh", func() (*anim.Skeleton, *anim.Clip, error) {
		clip := anim.NewClip("x", 30)
		clip.EnsureCurve(anim.Path{Bone: testutil.Prefix + "Spine", Channel: anim.ChannelRotationEuler}).Insert(1, 0)
		return testutil.MixamoSkeleton("x"), clip, nil
	})
	d := asset.New("InPlace", "lib/InPlace.bvh", e.imp)
	_ = d.Load()
	_ = d.Normalize()
	if err := e.acc.Accumulate(d); !errors.Is(err, apperr.ErrMissingCurve) {
		t.Fatalf("err = %v, want ErrMissingCurve", err)
	}
	if len(e.acc.Tracks()) != 1 {
		t.Error("failed clip must not be committed")
	}
}

func TestCommitReferenceOnlyOnce(t *testing.T) {
	e := newEnv(t)
	if err := e.acc.CommitReference(); err != nil {
		t.Fatalf("CommitReference: %v", err)
	}
	if err := e.acc.CommitReference(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}
