// Package testutil provides shared fixtures: Mixamo-style skeletons and clips,
// a scripted importer, and BVH source directories.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/starford/rigmerge/internal/anim"
)

// Prefix is the vendor prefix fixture bones carry.
const Prefix = "mixamorig:"

// MixamoSkeleton returns a five-bone rig with prefixed names, in centimetres,
// placed under a 0.01 object scale the way an FBX import leaves it.
func MixamoSkeleton(name string) *anim.Skeleton {
	s := anim.NewSkeleton(name)
	s.Transform = mgl64.Scale3D(0.01, 0.01, 0.01)
	hips := &anim.Bone{Name: Prefix + "Hips", Head: mgl64.Vec3{0, 100, 0}, Tail: mgl64.Vec3{0, 110, 0}, RotationMode: anim.RotationXYZ}
	spine := &anim.Bone{Name: Prefix + "Spine", Parent: hips, Head: mgl64.Vec3{0, 110, 0}, Tail: mgl64.Vec3{0, 130, 0}, RotationMode: anim.RotationXYZ}
	head := &anim.Bone{Name: Prefix + "Head", Parent: spine, Head: mgl64.Vec3{0, 150, 0}, Tail: mgl64.Vec3{0, 170, 0}, RotationMode: anim.RotationXYZ}
	left := &anim.Bone{Name: Prefix + "LeftUpLeg", Parent: hips, Head: mgl64.Vec3{10, 95, 0}, Tail: mgl64.Vec3{10, 50, 0}, RotationMode: anim.RotationXYZ}
	right := &anim.Bone{Name: Prefix + "RightUpLeg", Parent: hips, Head: mgl64.Vec3{-10, 95, 0}, Tail: mgl64.Vec3{-10, 50, 0}, RotationMode: anim.RotationXYZ}
	for _, b := range []*anim.Bone{hips, spine, head, left, right} {
		_ = s.AddBone(b)
	}
	s.Attachments = []*anim.Attachment{{Name: "Body", Local: mgl64.Ident4()}}
	return s
}

// HipX, HipY and HipZ give the fixture hip location (centimetres) at frame f.
func HipX(f int) float64 { return 10 * float64(f) }
func HipY(f int) float64 { return 3 * math.Sin(float64(f)) }
func HipZ(f int) float64 { return -5 * float64(f) }

// WalkClip returns a clip with hip location curves on every axis and one
// spine rotation curve, keyed on frames 1..frames.
func WalkClip(name string, frames int) *anim.Clip {
	c := anim.NewClip(name, 30)
	hx := c.EnsureCurve(anim.Path{Bone: Prefix + "Hips", Channel: anim.ChannelLocation, Axis: anim.AxisX})
	hy := c.EnsureCurve(anim.Path{Bone: Prefix + "Hips", Channel: anim.ChannelLocation, Axis: anim.AxisY})
	hz := c.EnsureCurve(anim.Path{Bone: Prefix + "Hips", Channel: anim.ChannelLocation, Axis: anim.AxisZ})
	sp := c.EnsureCurve(anim.Path{Bone: Prefix + "Spine", Channel: anim.ChannelRotationEuler, Axis: anim.AxisX})
	for f := 1; f <= frames; f++ {
		t := float64(f)
		hx.Insert(t, HipX(f))
		hy.Insert(t, HipY(f))
		hz.Insert(t, HipZ(f))
		sp.Insert(t, 0.1*t)
	}
	return c
}

// Importer is a scripted asset importer keyed by file path. Every Import call
// builds fresh objects so assets never share state.
type Importer struct {
	mu      sync.Mutex
	sources map[string]func() (*anim.Skeleton, *anim.Clip, error)
	calls   []string
}

// NewImporter returns an empty scripted importer.
func NewImporter() *Importer {
	return &Importer{sources: make(map[string]func() (*anim.Skeleton, *anim.Clip, error))}
}

// Add registers a fixture clip at path.
func (i *Importer) Add(path string, build func() (*anim.Skeleton, *anim.Clip, error)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sources[path] = build
}

// AddWalk registers a MixamoSkeleton with a WalkClip at path.
func (i *Importer) AddWalk(path string, frames int) {
	i.Add(path, func() (*anim.Skeleton, *anim.Clip, error) {
		return MixamoSkeleton("Armature"), WalkClip("mixamo.com", frames), nil
	})
}

// Import implements asset.Importer.
func (i *Importer) Import(path string) (*anim.Skeleton, *anim.Clip, error) {
	i.mu.Lock()
	build, ok := i.sources[path]
	i.calls = append(i.calls, path)
	i.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("testutil: no fixture for %s", path)
	}
	return build()
}

// Calls returns the paths imported so far, in order.
func (i *Importer) Calls() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}

// BVH renders a small Mixamo-style BVH document with frames frames whose
// hip positions follow HipX/HipY/HipZ around a rest height of 100.
func BVH(frames int) string {
	var b strings.Builder
	b.WriteString("HIERARCHY\n")
	b.WriteString("ROOT mixamorig:Hips\n{\n")
	b.WriteString("\tOFFSET 0.00 100.00 0.00\n")
	b.WriteString("\tCHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation\n")
	b.WriteString("\tJOINT mixamorig:Spine\n\t{\n")
	b.WriteString("\t\tOFFSET 0.00 10.00 0.00\n")
	b.WriteString("\t\tCHANNELS 3 Zrotation Xrotation Yrotation\n")
	b.WriteString("\t\tEnd Site\n\t\t{\n\t\t\tOFFSET 0.00 20.00 0.00\n\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("\tJOINT mixamorig:LeftUpLeg\n\t{\n")
	b.WriteString("\t\tOFFSET 10.00 -5.00 0.00\n")
	b.WriteString("\t\tCHANNELS 3 Zrotation Xrotation Yrotation\n")
	b.WriteString("\t\tEnd Site\n\t\t{\n\t\t\tOFFSET 0.00 -45.00 0.00\n\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("}\n")
	b.WriteString("MOTION\n")
	fmt.Fprintf(&b, "Frames: %d\n", frames)
	b.WriteString("Frame Time: 0.0333333\n")
	for f := 1; f <= frames; f++ {
		fmt.Fprintf(&b, "%.6f %.6f %.6f 0.0 0.0 0.0 %.6f 0.0 0.0 0.0 0.0 0.0\n",
			HipX(f), 100+HipY(f), HipZ(f), float64(f))
	}
	return b.String()
}

// SourceDir creates <tmp>/<library> holding one BVH file per clip name and
// returns the library path.
func SourceDir(t *testing.T, library string, frames int, clips ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), library)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range clips {
		if err := os.WriteFile(filepath.Join(dir, name+".bvh"), []byte(BVH(frames)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
