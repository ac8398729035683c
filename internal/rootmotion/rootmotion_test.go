package rootmotion

import (
	"errors"
	"testing"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/curveops"
	"github.com/starford/rigmerge/internal/testutil"
)

func reference(t *testing.T, build func() (*anim.Skeleton, *anim.Clip, error)) *asset.SkeletonAsset {
	t.Helper()
	imp := testutil.NewImporter()
	imp.Add("lib/TPose.bvh", build)
	a := asset.New("TPose", "lib/TPose.bvh", imp)
	for _, step := range []func() error{a.Load, a.Normalize, a.AddRootBone, a.BindHipsUnderRoot} {
		if err := step(); err != nil {
			t.Fatalf("prepare reference: %v", err)
		}
	}
	return a
}

func walk(frames int) func() (*anim.Skeleton, *anim.Clip, error) {
	return func() (*anim.Skeleton, *anim.Clip, error) {
		return testutil.MixamoSkeleton("x"), testutil.WalkClip("x", frames), nil
	}
}

func snapshot(c *anim.Curve) []anim.Keyframe {
	return append([]anim.Keyframe(nil), c.Keys...)
}

func TestExtractMovesHorizontalMotion(t *testing.T) {
	ref := reference(t, walk(6))
	before := ref.HipCurves()
	hx, hy, hz := snapshot(before[anim.AxisX]), snapshot(before[anim.AxisY]), snapshot(before[anim.AxisZ])

	if err := New().Extract(ref); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	hips := ref.HipCurves()
	if hips[anim.AxisX] != nil || hips[anim.AxisZ] != nil {
		t.Error("horizontal hip curves should be removed")
	}
	roots := ref.RootCurves()
	for axis, want := range map[int][]anim.Keyframe{anim.AxisX: hx, anim.AxisZ: hz} {
		got := roots[axis]
		if got == nil || got.Len() != len(want) {
			t.Fatalf("root axis %d = %+v, want %d keys", axis, got, len(want))
		}
		for i := range want {
			if got.Keys[i] != want[i] {
				t.Errorf("root axis %d key %d = %+v, want %+v", axis, i, got.Keys[i], want[i])
			}
		}
	}

	vertical := hips[anim.AxisY]
	if vertical == nil || vertical.Len() != len(hy) {
		t.Fatal("vertical hip curve must survive")
	}
	for i := range hy {
		if vertical.Keys[i] != hy[i] {
			t.Errorf("vertical key %d changed: %+v -> %+v", i, hy[i], vertical.Keys[i])
		}
	}

	ry := roots[anim.AxisY]
	if ry == nil || ry.Len() != 1 || ry.Keys[0] != (anim.Keyframe{Time: 1, Value: 0}) {
		t.Errorf("root vertical = %+v, want single zero key at frame 1", ry)
	}
}

func TestExtractMissingHipCurve(t *testing.T) {
	ref := reference(t, func() (*anim.Skeleton, *anim.Clip, error) {
		clip := testutil.WalkClip("x", 3)
		hz := clip.Curve(anim.Path{Bone: testutil.Prefix + "Hips", Channel: anim.ChannelLocation, Axis: anim.AxisZ})
		clip.Remove(hz)
		return testutil.MixamoSkeleton("x"), clip, nil
	})
	err := New().Extract(ref)
	if !errors.Is(err, apperr.ErrMissingCurve) {
		t.Fatalf("err = %v, want ErrMissingCurve", err)
	}
	if ref.RootCurves()[anim.AxisX] != nil {
		t.Error("root should not be keyed when hips are missing")
	}
}

func TestExtractStrictCadenceMismatch(t *testing.T) {
	ref := reference(t, func() (*anim.Skeleton, *anim.Clip, error) {
		clip := testutil.WalkClip("x", 4)
		early := clip.EnsureCurve(anim.Path{Bone: testutil.Prefix + "Head", Channel: anim.ChannelRotationEuler, Axis: anim.AxisX})
		early.Insert(0, 0)
		return testutil.MixamoSkeleton("x"), clip, nil
	})
	if err := New().Extract(ref); !errors.Is(err, apperr.ErrCadenceMismatch) {
		t.Fatalf("err = %v, want ErrCadenceMismatch", err)
	}
}

func TestExtractByTimeCadence(t *testing.T) {
	ref := reference(t, func() (*anim.Skeleton, *anim.Clip, error) {
		clip := testutil.WalkClip("x", 4)
		early := clip.EnsureCurve(anim.Path{Bone: testutil.Prefix + "Head", Channel: anim.ChannelRotationEuler, Axis: anim.AxisX})
		early.Insert(0, 0)
		return testutil.MixamoSkeleton("x"), clip, nil
	})
	if err := New(WithCadence(curveops.CadenceByTime)).Extract(ref); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	rx := ref.RootCurves()[anim.AxisX]
	if rx.Len() != 5 || rx.Keys[0] != (anim.Keyframe{Time: 0, Value: 0}) {
		t.Errorf("root x = %+v, want origin key at 0 plus 4 hip keys", rx.Keys)
	}
}

func TestExtractRequiresRootReady(t *testing.T) {
	imp := testutil.NewImporter()
	imp.AddWalk("lib/Walk.bvh", 2)
	a := asset.New("Walk", "lib/Walk.bvh", imp)
	_ = a.Load()
	_ = a.Normalize()
	if err := New().Extract(a); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}
