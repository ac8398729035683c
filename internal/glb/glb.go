// Package glb exports a combined skeleton and its tracks as a binary glTF
// file with one animation per track.
package glb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/starford/rigmerge/internal/anim"
)

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = l
	}
}

// Exporter writes .glb files.
type Exporter struct {
	logger *slog.Logger
}

// NewExporter returns a glb exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes skel to path.
func (e *Exporter) Export(path string, skel *anim.Skeleton) error {
	doc, err := Build(skel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("glb: mkdir: %w", err)
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("glb: save %s: %w", path, err)
	}
	e.logger.Info("glb exported",
		slog.String("path", path),
		slog.Int("animations", len(doc.Animations)),
	)
	return nil
}

// Build converts skel into a glTF document. Node 0 is the armature; bone i
// is node i+1 with its rest offset from the parent head as translation.
func Build(skel *anim.Skeleton) (*gltf.Document, error) {
	if len(skel.Bones) == 0 {
		return nil, fmt.Errorf("glb: skeleton %q has no bones", skel.Name)
	}
	doc := gltf.NewDocument()
	doc.Nodes = append(doc.Nodes, newNode(skel.Name, mgl64.Vec3{}))
	nodeOf := make(map[*anim.Bone]uint32, len(skel.Bones))
	joints := make([]uint32, 0, len(skel.Bones))
	for i, b := range skel.Bones {
		idx := uint32(i + 1)
		nodeOf[b] = idx
		joints = append(joints, idx)
		doc.Nodes = append(doc.Nodes, newNode(b.Name, restOffset(b)))
	}
	for _, b := range skel.Bones {
		parent := doc.Nodes[0]
		if b.Parent != nil {
			p, ok := nodeOf[b.Parent]
			if !ok {
				return nil, fmt.Errorf("glb: bone %q has a parent outside the skeleton", b.Name)
			}
			parent = doc.Nodes[p]
		}
		parent.Children = append(parent.Children, nodeOf[b])
	}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	doc.Skins = append(doc.Skins, &gltf.Skin{
		Name:     skel.Name,
		Skeleton: gltf.Index(0),
		Joints:   joints,
	})

	for _, tr := range skel.Tracks {
		a := buildAnimation(doc, skel, nodeOf, tr)
		if len(a.Channels) == 0 {
			continue
		}
		doc.Animations = append(doc.Animations, a)
	}
	return doc, nil
}

func newNode(name string, t mgl64.Vec3) *gltf.Node {
	return &gltf.Node{
		Name:        name,
		Matrix:      gltf.DefaultMatrix,
		Translation: vec3f(t),
		Rotation:    gltf.DefaultRotation,
		Scale:       gltf.DefaultScale,
	}
}

func restOffset(b *anim.Bone) mgl64.Vec3 {
	if b.Parent == nil {
		return b.Head
	}
	return b.Head.Sub(b.Parent.Head)
}

func vec3f(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// boneCurves groups one bone's curves in a clip by channel and axis.
type boneCurves map[anim.Channel]*[4]*anim.Curve

func (bc boneCurves) times(ch anim.Channel) []float64 {
	group := bc[ch]
	if group == nil {
		return nil
	}
	var out []float64
	for _, c := range group {
		if c == nil {
			continue
		}
		for _, k := range c.Keys {
			out = append(out, k.Time)
		}
	}
	sort.Float64s(out)
	uniq := out[:0]
	for _, t := range out {
		if len(uniq) == 0 || !anim.SameTime(uniq[len(uniq)-1], t) {
			uniq = append(uniq, t)
		}
	}
	return uniq
}

// value evaluates one axis at t, or returns def when the axis has no curve.
func (bc boneCurves) value(ch anim.Channel, axis int, t, def float64) float64 {
	group := bc[ch]
	if group == nil || group[axis] == nil {
		return def
	}
	return group[axis].Evaluate(t)
}

func buildAnimation(doc *gltf.Document, skel *anim.Skeleton, nodeOf map[*anim.Bone]uint32, tr *anim.Track) *gltf.Animation {
	a := &gltf.Animation{
		Name: tr.Name,
		Extras: map[string]any{
			"loop":  tr.Loop,
			"lane":  tr.Lane,
			"start": tr.Start,
			"end":   tr.End,
		},
	}
	byBone := make(map[string]boneCurves)
	for _, c := range tr.Clip.Curves {
		if c.Path.Axis < 0 || c.Path.Axis > anim.AxisW {
			continue
		}
		bc := byBone[c.Path.Bone]
		if bc == nil {
			bc = make(boneCurves)
			byBone[c.Path.Bone] = bc
		}
		if bc[c.Path.Channel] == nil {
			bc[c.Path.Channel] = &[4]*anim.Curve{}
		}
		bc[c.Path.Channel][c.Path.Axis] = c
	}
	origin, _, _ := tr.Clip.FrameRange()
	fps := tr.Clip.FPS
	if fps <= 0 {
		fps = 30
	}
	seconds := func(frames []float64) []float32 {
		out := make([]float32, len(frames))
		for i, f := range frames {
			out[i] = float32((f - origin) / fps)
		}
		return out
	}

	for _, b := range skel.Bones {
		bc := byBone[b.Name]
		if bc == nil {
			continue
		}
		node := nodeOf[b]
		rest := restOffset(b)

		if ts := bc.times(anim.ChannelLocation); len(ts) > 0 {
			out := make([][3]float32, len(ts))
			for i, t := range ts {
				out[i] = vec3f(rest.Add(mgl64.Vec3{
					bc.value(anim.ChannelLocation, anim.AxisX, t, 0),
					bc.value(anim.ChannelLocation, anim.AxisY, t, 0),
					bc.value(anim.ChannelLocation, anim.AxisZ, t, 0),
				}))
			}
			addChannel(doc, a, node, gltf.TRSTranslation, seconds(ts), modeler.WritePosition(doc, out))
		}

		rotCh := anim.ChannelRotationEuler
		if b.RotationMode == anim.RotationQuaternion || bc[anim.ChannelRotationEuler] == nil {
			rotCh = anim.ChannelRotationQuaternion
		}
		if ts := bc.times(rotCh); len(ts) > 0 {
			out := make([][4]float32, len(ts))
			for i, t := range ts {
				var q mgl64.Quat
				if rotCh == anim.ChannelRotationEuler {
					q = EulerToQuat(b.RotationMode, mgl64.Vec3{
						bc.value(rotCh, anim.AxisX, t, 0),
						bc.value(rotCh, anim.AxisY, t, 0),
						bc.value(rotCh, anim.AxisZ, t, 0),
					})
				} else {
					q = mgl64.Quat{
						W: bc.value(rotCh, anim.AxisW, t, 1),
						V: mgl64.Vec3{
							bc.value(rotCh, anim.AxisX, t, 0),
							bc.value(rotCh, anim.AxisY, t, 0),
							bc.value(rotCh, anim.AxisZ, t, 0),
						},
					}.Normalize()
				}
				out[i] = [4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)}
			}
			addChannel(doc, a, node, gltf.TRSRotation, seconds(ts), modeler.WriteTangent(doc, out))
		}

		if ts := bc.times(anim.ChannelScale); len(ts) > 0 {
			out := make([][3]float32, len(ts))
			for i, t := range ts {
				out[i] = vec3f(mgl64.Vec3{
					bc.value(anim.ChannelScale, anim.AxisX, t, 1),
					bc.value(anim.ChannelScale, anim.AxisY, t, 1),
					bc.value(anim.ChannelScale, anim.AxisZ, t, 1),
				})
			}
			addChannel(doc, a, node, gltf.TRSScale, seconds(ts), modeler.WriteAccessor(doc, gltf.TargetNone, out))
		}
	}
	return a
}

func addChannel(doc *gltf.Document, a *gltf.Animation, node uint32, path gltf.TRSProperty, times []float32, output uint32) {
	input := modeler.WriteAccessor(doc, gltf.TargetNone, times)
	acc := doc.Accessors[input]
	acc.Min = []float32{times[0]}
	acc.Max = []float32{times[len(times)-1]}
	a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(input),
		Output:        gltf.Index(output),
		Interpolation: gltf.InterpolationLinear,
	})
	a.Channels = append(a.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(node),
			Path: path,
		},
	})
}

// EulerToQuat composes per-axis rotations in the order mode names them, the
// first axis outermost, as BVH channel order does.
func EulerToQuat(mode string, angles mgl64.Vec3) mgl64.Quat {
	if len(mode) != 3 {
		mode = anim.RotationXYZ
	}
	q := mgl64.QuatIdent()
	for _, c := range mode {
		var axis mgl64.Vec3
		i := int(c - 'X')
		if i < 0 || i > 2 {
			continue
		}
		axis[i] = 1
		q = q.Mul(mgl64.QuatRotate(angles[i], axis))
	}
	return q.Normalize()
}
