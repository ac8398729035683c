package bvh

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/starford/rigmerge/internal/anim"
)

// FirstFrame is the frame number of the first BVH sample.
const FirstFrame = 1

// Option configures an Importer.
type Option func(*Importer)

// WithObjectScale places imported skeletons under a uniform object scale,
// the way FBX importers leave centimetre rigs. The default is 1.
func WithObjectScale(s float64) Option {
	return func(i *Importer) {
		i.objectScale = s
	}
}

// Importer turns BVH files into a skeleton and its clip.
type Importer struct {
	objectScale float64
}

// NewImporter returns a BVH importer.
func NewImporter(opts ...Option) *Importer {
	i := &Importer{objectScale: 1}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import parses the file at path.
func (i *Importer) Import(path string) (*anim.Skeleton, *anim.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("bvh: open: %w", err)
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	skel, err := doc.Skeleton(name)
	if err != nil {
		return nil, nil, err
	}
	if i.objectScale != 1 {
		skel.Transform = mgl64.Scale3D(i.objectScale, i.objectScale, i.objectScale)
	}
	return skel, doc.Clip(name), nil
}

// Skeleton builds the rest pose. Heads accumulate joint offsets; a bone's
// tail is its first child's head, its end site, or a unit step along +Y.
func (d *Document) Skeleton(name string) (*anim.Skeleton, error) {
	skel := anim.NewSkeleton(name)
	bones := make(map[*Joint]*anim.Bone, len(d.Joints))
	for _, j := range d.Joints {
		b := &anim.Bone{Name: j.Name, Head: j.Offset, RotationMode: rotationMode(j.Channels)}
		if j.Parent != nil {
			b.Parent = bones[j.Parent]
			b.Head = b.Parent.Head.Add(j.Offset)
		}
		bones[j] = b
		if err := skel.AddBone(b); err != nil {
			return nil, fmt.Errorf("bvh: %w", err)
		}
	}
	for _, j := range d.Joints {
		b := bones[j]
		switch {
		case len(j.Children) > 0:
			b.Tail = b.Head.Add(j.Children[0].Offset)
		case j.EndSite != nil:
			b.Tail = b.Head.Add(*j.EndSite)
		default:
			b.Tail = b.Head.Add(mgl64.Vec3{0, 1, 0})
		}
		if b.Tail.ApproxEqual(b.Head) {
			b.Tail = b.Head.Add(mgl64.Vec3{0, 1, 0})
		}
	}
	return skel, nil
}

// rotationMode returns the rotation channel axes in declaration order, such
// as "ZXY", or XYZ when the joint has no rotation channels.
func rotationMode(channels []string) string {
	var b strings.Builder
	for _, c := range channels {
		if strings.HasSuffix(c, "rotation") {
			b.WriteByte(c[0])
		}
	}
	if b.Len() != 3 {
		return anim.RotationXYZ
	}
	return b.String()
}

// Clip converts the motion block into curves. Position channels become
// location offsets from the joint's rest offset; rotation channels become
// Euler angles in radians.
func (d *Document) Clip(name string) *anim.Clip {
	fps := 1 / d.FrameTime
	clip := anim.NewClip(name, math.Round(fps*1000)/1000)
	col := 0
	for _, j := range d.Joints {
		for _, c := range j.Channels {
			axis := int(c[0] - 'X')
			p := anim.Path{Bone: j.Name, Axis: axis}
			position := strings.HasSuffix(c, "position")
			if position {
				p.Channel = anim.ChannelLocation
			} else {
				p.Channel = anim.ChannelRotationEuler
			}
			curve := &anim.Curve{Path: p, Keys: make([]anim.Keyframe, len(d.Frames))}
			for f, row := range d.Frames {
				v := row[col]
				if position {
					v -= j.Offset[axis]
				} else {
					v = mgl64.DegToRad(v)
				}
				curve.Keys[f] = anim.Keyframe{Time: float64(FirstFrame + f), Value: v}
			}
			clip.Curves = append(clip.Curves, curve)
			col++
		}
	}
	return clip
}
