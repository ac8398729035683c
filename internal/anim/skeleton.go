package anim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Rotation modes a bone can be animated in.
const (
	RotationQuaternion = "QUATERNION"
	RotationXYZ        = "XYZ"
)

// Bone is one joint of a skeleton. Head and Tail are rest-pose positions in
// skeleton-local space.
type Bone struct {
	Name         string
	Parent       *Bone
	Head         mgl64.Vec3
	Tail         mgl64.Vec3
	RotationMode string
}

// Attachment is an object parented to the skeleton object, such as a mesh.
type Attachment struct {
	Name  string
	Local mgl64.Mat4
}

// Track binds a committed clip to the skeleton. Each track sits on its own
// lane and keeps the clip's own time origin.
type Track struct {
	Name  string
	Lane  int
	Start float64
	End   float64
	Loop  bool
	Clip  *Clip
}

// Skeleton is a bone hierarchy with an object-level transform, one active clip
// slot and the ordered list of committed tracks.
type Skeleton struct {
	Name        string
	Bones       []*Bone
	Transform   mgl64.Mat4
	Attachments []*Attachment
	Active      *Clip
	Tracks      []*Track
}

// NewSkeleton returns an empty skeleton with an identity transform.
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{Name: name, Transform: mgl64.Ident4()}
}

// Bone returns the bone called name, or nil.
func (s *Skeleton) Bone(name string) *Bone {
	for _, b := range s.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// AddBone appends b. Bone names are unique within a skeleton.
func (s *Skeleton) AddBone(b *Bone) error {
	if s.Bone(b.Name) != nil {
		return fmt.Errorf("anim: duplicate bone %q in skeleton %q", b.Name, s.Name)
	}
	s.Bones = append(s.Bones, b)
	return nil
}

// PrependBone inserts b ahead of every other bone, so roots stay first in
// the bone order.
func (s *Skeleton) PrependBone(b *Bone) error {
	if s.Bone(b.Name) != nil {
		return fmt.Errorf("anim: duplicate bone %q in skeleton %q", b.Name, s.Name)
	}
	s.Bones = append([]*Bone{b}, s.Bones...)
	return nil
}

// Index returns the position of b in the bone order, or -1.
func (s *Skeleton) Index(b *Bone) int {
	for i, x := range s.Bones {
		if x == b {
			return i
		}
	}
	return -1
}

// BoneNames returns the bone names in order.
func (s *Skeleton) BoneNames() []string {
	out := make([]string, len(s.Bones))
	for i, b := range s.Bones {
		out[i] = b.Name
	}
	return out
}

// Children returns the direct children of b. A nil b yields the root bones.
func (s *Skeleton) Children(b *Bone) []*Bone {
	var out []*Bone
	for _, x := range s.Bones {
		if x.Parent == b {
			out = append(out, x)
		}
	}
	return out
}

// Track returns the committed track called name, or nil.
func (s *Skeleton) Track(name string) *Track {
	for _, t := range s.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}
