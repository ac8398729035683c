// Package rootmotion moves horizontal hip displacement onto the synthetic
// root bone of the reference skeleton.
package rootmotion

import (
	"fmt"
	"log/slog"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/curveops"
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithCadence selects how hip keys are copied onto the root curves.
func WithCadence(c curveops.Cadence) Option {
	return func(s *Synthesizer) {
		s.cadence = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = l
	}
}

// Synthesizer extracts root motion from the active clip of a reference asset.
type Synthesizer struct {
	cadence curveops.Cadence
	logger  *slog.Logger
}

// New returns a Synthesizer using strict cadence by default.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{cadence: curveops.CadenceStrict, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract keys the root bone at the origin on the clip's first frame, then for
// each horizontal axis copies the hip location keys onto the root bone and
// deletes the hip curve. Vertical hip motion stays on the hips.
func (s *Synthesizer) Extract(ref *asset.SkeletonAsset) error {
	if ref.State() != asset.StateRootReady {
		return fmt.Errorf("%w: root motion on %q in state %s", apperr.ErrInvalidState, ref.Name(), ref.State())
	}
	clip := ref.ActiveClip()
	if clip == nil {
		return fmt.Errorf("%w: %q has no active clip", apperr.ErrInvalidState, ref.Name())
	}
	conv := ref.Conventions()
	horizontal := conv.Horizontal()

	hips := ref.HipCurves()
	if err := curveops.RequireAxes(hips, conv.HipBone, horizontal[0], horizontal[1]); err != nil {
		return fmt.Errorf("rootmotion: clip %q: %w", clip.Name, err)
	}
	start, _, _ := clip.FrameRange()

	for axis := anim.AxisX; axis <= anim.AxisZ; axis++ {
		p := anim.Path{Bone: conv.RootBone, Channel: anim.ChannelLocation, Axis: axis}
		clip.EnsureCurve(p).Insert(start, 0)
	}
	roots := ref.RootCurves()
	if err := curveops.RequireAxes(roots, conv.RootBone, horizontal[0], horizontal[1]); err != nil {
		return fmt.Errorf("rootmotion: clip %q: %w", clip.Name, err)
	}

	for _, axis := range horizontal {
		if err := curveops.CopyWith(s.cadence, hips[axis], roots[axis]); err != nil {
			return fmt.Errorf("rootmotion: clip %q: %w", clip.Name, err)
		}
		curveops.RemoveCurve(clip, hips[axis])
	}

	s.logger.Debug("rootmotion: extracted",
		slog.String("clip", clip.Name),
		slog.Int("keys", roots[horizontal[0]].Len()),
		slog.Float64("start", start))
	return nil
}
