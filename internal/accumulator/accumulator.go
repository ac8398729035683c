// Package accumulator collects every processed clip as an ordered track on the
// reference skeleton.
package accumulator

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/rootmotion"
)

// DefaultLoopSuffix marks clips that runtimes should play in a loop.
const DefaultLoopSuffix = "-loop"

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithLoopSuffix overrides DefaultLoopSuffix. An empty suffix disables loop
// detection.
func WithLoopSuffix(suffix string) Option {
	return func(a *Accumulator) {
		a.loopSuffix = suffix
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Accumulator) {
		a.logger = l
	}
}

// Accumulator owns the reference asset for the whole batch.
type Accumulator struct {
	ref        *asset.SkeletonAsset
	synth      *rootmotion.Synthesizer
	loopSuffix string
	logger     *slog.Logger
}

// New wraps ref, which must already be root-ready.
func New(ref *asset.SkeletonAsset, synth *rootmotion.Synthesizer, opts ...Option) (*Accumulator, error) {
	if ref.State() != asset.StateRootReady {
		return nil, fmt.Errorf("%w: reference %q in state %s", apperr.ErrInvalidState, ref.Name(), ref.State())
	}
	a := &Accumulator{
		ref:        ref,
		synth:      synth,
		loopSuffix: DefaultLoopSuffix,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Reference returns the reference asset.
func (a *Accumulator) Reference() *asset.SkeletonAsset {
	return a.ref
}

// Tracks returns the committed tracks in commit order.
func (a *Accumulator) Tracks() []*anim.Track {
	return a.ref.Skeleton().Tracks
}

// Commit turns the active clip into a new track after every committed track
// and clears the active slot. Without an active clip it returns nil, nil.
func (a *Accumulator) Commit() (*anim.Track, error) {
	skel := a.ref.Skeleton()
	clip := skel.Active
	if clip == nil {
		return nil, nil
	}
	track := &anim.Track{
		Name: a.uniqueName(clip.Name),
		Lane: len(skel.Tracks),
		Loop: a.loopSuffix != "" && strings.HasSuffix(clip.Name, a.loopSuffix),
		Clip: clip,
	}
	if start, end, ok := clip.FrameRange(); ok {
		track.Start = math.Round(start)
		track.End = end
	}
	skel.Tracks = append(skel.Tracks, track)
	skel.Active = nil
	a.logger.Info("track committed",
		slog.String("clip", clip.Name),
		slog.String("track", track.Name),
		slog.Int("lane", track.Lane),
		slog.Bool("loop", track.Loop))
	return track, nil
}

func (a *Accumulator) uniqueName(name string) string {
	skel := a.ref.Skeleton()
	if skel.Track(name) == nil {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if skel.Track(candidate) == nil {
			return candidate
		}
	}
}

// Absorb validates donor against the reference skeleton, moves the donor's
// active clip onto the reference and discards the donor skeleton.
func (a *Accumulator) Absorb(donor *asset.SkeletonAsset) error {
	if err := a.validate(donor); err != nil {
		return err
	}
	clip, err := donor.DetachAndDiscard()
	if err != nil {
		return err
	}
	if err := a.ref.AttachClip(clip); err != nil {
		return err
	}
	a.logger.Debug("accumulator: absorbed", slog.String("clip", clip.Name))
	return nil
}

// validate checks that donor carries exactly the reference bones (less the
// root bone) and that every donor curve targets one of them.
func (a *Accumulator) validate(donor *asset.SkeletonAsset) error {
	if donor.State() != asset.StateNormalized {
		return fmt.Errorf("%w: donor %q in state %s", apperr.ErrInvalidState, donor.Name(), donor.State())
	}
	root := a.ref.Conventions().RootBone
	want := make(map[string]struct{})
	for _, name := range a.ref.Skeleton().BoneNames() {
		if name != root {
			want[name] = struct{}{}
		}
	}
	have := make(map[string]struct{})
	for _, name := range donor.Skeleton().BoneNames() {
		have[name] = struct{}{}
	}

	missing := difference(want, have)
	extra := difference(have, want)
	if len(missing) > 0 || len(extra) > 0 {
		return fmt.Errorf("%w: clip %q: missing bones %v, unexpected bones %v",
			apperr.ErrStructuralMismatch, donor.Name(), missing, extra)
	}
	for _, target := range donor.ActiveClip().Targets() {
		if _, ok := want[target]; !ok {
			return fmt.Errorf("%w: clip %q animates unknown bone %q",
				apperr.ErrStructuralMismatch, donor.Name(), target)
		}
	}
	return nil
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// CommitReference extracts root motion from the reference's own clip and
// commits it as the first track.
func (a *Accumulator) CommitReference() error {
	if len(a.ref.Skeleton().Tracks) > 0 {
		return fmt.Errorf("%w: reference already committed", apperr.ErrInvalidState)
	}
	if err := a.synth.Extract(a.ref); err != nil {
		return err
	}
	_, err := a.Commit()
	return err
}

// Accumulate absorbs donor, extracts root motion against the reference
// skeleton and commits the result before returning.
func (a *Accumulator) Accumulate(donor *asset.SkeletonAsset) error {
	if err := a.Absorb(donor); err != nil {
		return err
	}
	if err := a.synth.Extract(a.ref); err != nil {
		return err
	}
	_, err := a.Commit()
	return err
}
