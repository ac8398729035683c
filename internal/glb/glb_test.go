package glb

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/testutil"
)

func testSkeleton() *anim.Skeleton {
	s := testutil.MixamoSkeleton("Clips")
	s.Transform = mgl64.Ident4()
	s.Tracks = []*anim.Track{
		{Name: "TPose", Lane: 0, Start: 1, End: 3, Clip: testutil.WalkClip("TPose", 3)},
		{Name: "Run-loop", Lane: 1, Start: 1, End: 5, Loop: true, Clip: testutil.WalkClip("Run-loop", 5)},
	}
	return s
}

func TestBuildNodes(t *testing.T) {
	s := testSkeleton()
	doc, err := Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.Nodes) != len(s.Bones)+1 {
		t.Fatalf("nodes = %d, want %d", len(doc.Nodes), len(s.Bones)+1)
	}
	if doc.Nodes[0].Name != "Clips" || len(doc.Nodes[0].Children) != 1 {
		t.Errorf("armature node = %+v", doc.Nodes[0])
	}
	hips := doc.Nodes[1]
	if hips.Name != testutil.Prefix+"Hips" || len(hips.Children) != 3 {
		t.Errorf("hips node = %+v", hips)
	}
	spine := doc.Nodes[2]
	if spine.Translation != [3]float32{0, 10, 0} {
		t.Errorf("spine translation = %v, want rest offset from hips", spine.Translation)
	}
	if len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != len(s.Bones) {
		t.Errorf("skins = %+v", doc.Skins)
	}
}

func TestBuildAnimations(t *testing.T) {
	doc, err := Build(testSkeleton())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.Animations) != 2 {
		t.Fatalf("animations = %d, want 2", len(doc.Animations))
	}
	run := doc.Animations[1]
	if run.Name != "Run-loop" {
		t.Errorf("name = %q", run.Name)
	}
	if extras, ok := run.Extras.(map[string]any); !ok || extras["loop"] != true {
		t.Errorf("extras = %v", run.Extras)
	}
	// Hips translation and spine rotation.
	if len(run.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(run.Channels))
	}
	in := doc.Accessors[*run.Samplers[0].Input]
	if in.Count != 5 || in.Min[0] != 0 || math.Abs(float64(in.Max[0])-4.0/30) > 1e-6 {
		t.Errorf("input accessor = count %d min %v max %v", in.Count, in.Min, in.Max)
	}
	if run.Channels[0].Target.Path != gltf.TRSTranslation || *run.Channels[0].Target.Node != 1 {
		t.Errorf("first channel = %+v", run.Channels[0].Target)
	}
	if run.Channels[1].Target.Path != gltf.TRSRotation || *run.Channels[1].Target.Node != 2 {
		t.Errorf("second channel = %+v", run.Channels[1].Target)
	}
}

func TestBuildSkipsEmptyTracks(t *testing.T) {
	s := testSkeleton()
	s.Tracks = append(s.Tracks, &anim.Track{Name: "Empty", Lane: 2, Clip: anim.NewClip("Empty", 30)})
	doc, err := Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.Animations) != 2 {
		t.Errorf("animations = %d, want 2", len(doc.Animations))
	}
}

func TestBuildRejectsEmptySkeleton(t *testing.T) {
	if _, err := Build(anim.NewSkeleton("none")); err == nil {
		t.Error("expected error")
	}
}

func TestEulerToQuat(t *testing.T) {
	q := EulerToQuat(anim.RotationXYZ, mgl64.Vec3{math.Pi / 2, 0, 0})
	want := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})
	if !q.ApproxEqual(want) {
		t.Errorf("q = %v, want %v", q, want)
	}

	angles := mgl64.Vec3{0.3, -0.2, 0.5}
	zxy := EulerToQuat("ZXY", angles)
	manual := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1}).
		Mul(mgl64.QuatRotate(0.3, mgl64.Vec3{1, 0, 0})).
		Mul(mgl64.QuatRotate(-0.2, mgl64.Vec3{0, 1, 0}))
	if !zxy.ApproxEqual(manual) {
		t.Errorf("ZXY = %v, want %v", zxy, manual)
	}
}

func TestExportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Clips.glb")
	e := NewExporter(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := e.Export(path, testSkeleton()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(doc.Animations) != 2 || doc.Animations[0].Name != "TPose" {
		t.Errorf("animations = %+v", doc.Animations)
	}
	if len(doc.Nodes) != 6 {
		t.Errorf("nodes = %d", len(doc.Nodes))
	}
}
