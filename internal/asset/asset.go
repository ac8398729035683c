// Package asset wraps one imported clip and its skeleton through loading and
// normalisation, and carries the structural edits made to the reference
// skeleton.
package asset

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/curveops"
)

// Importer parses one motion-capture file into a skeleton and its single clip.
type Importer interface {
	Import(path string) (*anim.Skeleton, *anim.Clip, error)
}

// State is the lifecycle position of a SkeletonAsset.
type State int

// Lifecycle states.
const (
	StateUnloaded State = iota
	StateLoaded
	StateNormalized
	StateRootReady
	StateAbsorbed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateNormalized:
		return "normalized"
	case StateRootReady:
		return "root_ready"
	case StateAbsorbed:
		return "absorbed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures a SkeletonAsset.
type Option func(*SkeletonAsset)

// WithConventions overrides DefaultConventions.
func WithConventions(c Conventions) Option {
	return func(a *SkeletonAsset) {
		a.conv = c
	}
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(a *SkeletonAsset) {
		a.logger = l
	}
}

// SkeletonAsset is one source clip bound to its skeleton.
type SkeletonAsset struct {
	name     string
	path     string
	importer Importer
	conv     Conventions
	logger   *slog.Logger

	state    State
	skeleton *anim.Skeleton
	root     *anim.Bone
	scaled   bool
}

// New creates an unloaded asset for the clip called name stored at path.
func New(name, path string, importer Importer, opts ...Option) *SkeletonAsset {
	a := &SkeletonAsset{
		name:     name,
		path:     path,
		importer: importer,
		conv:     DefaultConventions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the clip identity.
func (a *SkeletonAsset) Name() string { return a.name }

// Path returns the source file path.
func (a *SkeletonAsset) Path() string { return a.path }

// State returns the lifecycle state.
func (a *SkeletonAsset) State() State { return a.state }

// Conventions returns the naming and unit conventions in use.
func (a *SkeletonAsset) Conventions() Conventions { return a.conv }

// Skeleton returns the bound skeleton, nil before Load and after discard.
func (a *SkeletonAsset) Skeleton() *anim.Skeleton { return a.skeleton }

// RootBone returns the synthetic root bone, nil until AddRootBone.
func (a *SkeletonAsset) RootBone() *anim.Bone { return a.root }

// ActiveClip returns the clip in the active slot, or nil.
func (a *SkeletonAsset) ActiveClip() *anim.Clip {
	if a.skeleton == nil {
		return nil
	}
	return a.skeleton.Active
}

// HipCurves returns the hip location curves of the active clip by axis.
func (a *SkeletonAsset) HipCurves() [3]*anim.Curve {
	return a.curves(curveops.HipPosition(a.conv.HipBone))
}

// RootCurves returns the root-bone location curves of the active clip by axis.
func (a *SkeletonAsset) RootCurves() [3]*anim.Curve {
	return a.curves(curveops.RootPosition(a.conv.RootBone))
}

func (a *SkeletonAsset) curves(pred curveops.Predicate) [3]*anim.Curve {
	clip := a.ActiveClip()
	if clip == nil {
		return [3]*anim.Curve{}
	}
	return curveops.SelectByPath(clip, pred)
}

func (a *SkeletonAsset) expect(op string, states ...State) error {
	for _, s := range states {
		if a.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on clip %q in state %s", apperr.ErrInvalidState, op, a.name, a.state)
}

// Load imports the source file and binds its skeleton and clip, both renamed
// after the clip identity.
func (a *SkeletonAsset) Load() error {
	if err := a.expect("load", StateUnloaded); err != nil {
		return err
	}
	skel, clip, err := a.importer.Import(a.path)
	if err != nil {
		return fmt.Errorf("%w: clip %q (%s): %w", apperr.ErrImport, a.name, a.path, err)
	}
	if skel == nil || clip == nil {
		return fmt.Errorf("%w: clip %q (%s): importer returned no skeleton or clip", apperr.ErrImport, a.name, a.path)
	}
	if skel.Bone(a.conv.RootBone) != nil {
		return fmt.Errorf("%w: clip %q already has a %q bone", apperr.ErrAlreadyProcessed, a.name, a.conv.RootBone)
	}
	skel.Name = a.name
	clip.Name = a.name
	skel.Active = clip
	a.skeleton = skel
	a.state = StateLoaded
	a.logger.Debug("asset: loaded",
		slog.String("clip", a.name),
		slog.Int("bones", len(skel.Bones)),
		slog.Int("curves", len(clip.Curves)))
	return nil
}

// Normalize renames bones, bakes the object transform and converts hip
// translation units, in that order.
func (a *SkeletonAsset) Normalize() error {
	if err := a.expect("normalize", StateLoaded); err != nil {
		return err
	}
	if err := a.RenameBones(); err != nil {
		return err
	}
	if err := a.BakeTransform(); err != nil {
		return err
	}
	if err := a.ScaleTranslation(); err != nil {
		return err
	}
	a.state = StateNormalized
	return nil
}

// RenameBones strips vendor prefixes from every bone and retargets the active
// clip's curves accordingly. Renaming an already-clean skeleton is a no-op.
func (a *SkeletonAsset) RenameBones() error {
	if err := a.expect("rename bones", StateLoaded, StateNormalized); err != nil {
		return err
	}
	renamed := 0
	for _, b := range a.skeleton.Bones {
		name := StripPrefix(b.Name, a.conv.BonePrefixes)
		if name == b.Name {
			continue
		}
		if other := a.skeleton.Bone(name); other != nil {
			return fmt.Errorf("%w: clip %q: renaming %q collides with existing bone %q",
				apperr.ErrStructuralMismatch, a.name, b.Name, name)
		}
		if clip := a.skeleton.Active; clip != nil {
			clip.RenameTarget(b.Name, name)
		}
		b.Name = name
		renamed++
	}
	a.logger.Debug("asset: bones renamed", slog.String("clip", a.name), slog.Int("renamed", renamed))
	return nil
}

// BakeTransform folds the skeleton's object transform into the rest pose and
// into every attachment, then resets the object transform to identity.
func (a *SkeletonAsset) BakeTransform() error {
	if err := a.expect("bake transform", StateLoaded); err != nil {
		return err
	}
	m := a.skeleton.Transform
	if m.ApproxEqual(mgl64.Ident4()) {
		return nil
	}
	for _, b := range a.skeleton.Bones {
		b.Head = mgl64.TransformCoordinate(b.Head, m)
		b.Tail = mgl64.TransformCoordinate(b.Tail, m)
	}
	for _, att := range a.skeleton.Attachments {
		att.Local = m.Mul4(att.Local)
	}
	a.skeleton.Transform = mgl64.Ident4()
	a.logger.Debug("asset: transform baked", slog.String("clip", a.name))
	return nil
}

// ScaleTranslation converts hip location keys to target units. It runs at
// most once per asset.
func (a *SkeletonAsset) ScaleTranslation() error {
	if err := a.expect("scale translation", StateLoaded); err != nil {
		return err
	}
	if a.scaled {
		return fmt.Errorf("%w: clip %q translation already scaled", apperr.ErrInvalidState, a.name)
	}
	hips := a.HipCurves()
	for _, axis := range a.conv.ScaleAxes {
		if axis < anim.AxisX || axis > anim.AxisZ || hips[axis] == nil {
			continue
		}
		curveops.ScaleAxis(hips[axis], a.conv.UnitScale)
	}
	a.scaled = true
	return nil
}

// AddRootBone creates the root-motion bone at the origin, ahead of every
// other bone and without a parent.
func (a *SkeletonAsset) AddRootBone() error {
	if err := a.expect("add root bone", StateNormalized); err != nil {
		return err
	}
	var tail mgl64.Vec3
	tail[a.conv.UpAxis] = a.conv.RootTail
	root := &anim.Bone{
		Name:         a.conv.RootBone,
		Tail:         tail,
		RotationMode: anim.RotationQuaternion,
	}
	if err := a.skeleton.PrependBone(root); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidState, err)
	}
	a.root = root
	a.logger.Debug("asset: root bone added", slog.String("clip", a.name), slog.String("bone", root.Name))
	return nil
}

// BindHipsUnderRoot reparents the hip bone under the root bone.
func (a *SkeletonAsset) BindHipsUnderRoot() error {
	if err := a.expect("bind hips", StateNormalized); err != nil {
		return err
	}
	if a.root == nil {
		return fmt.Errorf("%w: clip %q has no root bone", apperr.ErrInvalidState, a.name)
	}
	hip := a.skeleton.Bone(a.conv.HipBone)
	if hip == nil {
		return fmt.Errorf("%w: clip %q has no %q bone", apperr.ErrStructuralMismatch, a.name, a.conv.HipBone)
	}
	hip.Parent = a.root
	a.state = StateRootReady
	return nil
}

// AttachClip makes clip the active clip. The slot must be empty.
func (a *SkeletonAsset) AttachClip(clip *anim.Clip) error {
	if err := a.expect("attach clip", StateRootReady); err != nil {
		return err
	}
	if a.skeleton.Active != nil {
		return fmt.Errorf("%w: clip %q still active on %q", apperr.ErrInvalidState, a.skeleton.Active.Name, a.name)
	}
	a.skeleton.Active = clip
	return nil
}

// DetachAndDiscard hands the active clip over and destroys the skeleton. The
// asset cannot be used afterwards.
func (a *SkeletonAsset) DetachAndDiscard() (*anim.Clip, error) {
	if err := a.expect("detach", StateNormalized); err != nil {
		return nil, err
	}
	clip := a.skeleton.Active
	if clip == nil {
		return nil, fmt.Errorf("%w: clip %q has no active clip", apperr.ErrInvalidState, a.name)
	}
	a.skeleton.Active = nil
	a.skeleton = nil
	a.state = StateAbsorbed
	a.logger.Debug("asset: discarded", slog.String("clip", a.name))
	return clip, nil
}
