// Package batch drives one merge run over a clip collection: the reference
// clip first, then every donor in enumeration order, then the artifacts.
package batch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/rigmerge/internal/accumulator"
	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/curveops"
	"github.com/starford/rigmerge/internal/library"
	"github.com/starford/rigmerge/internal/rootmotion"
	"github.com/starford/rigmerge/internal/source"
)

// Defaults for a run.
const (
	DefaultReferenceClip = "TPose"
	DefaultProjectExt    = ".animlib"
	DefaultExportExt     = ".glb"
)

// Saver persists the combined project.
type Saver interface {
	Save(path string, p *library.Project) error
}

// Exporter writes the distribution file.
type Exporter interface {
	Export(path string, skel *anim.Skeleton) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConventions sets the naming and unit conventions applied to every clip.
func WithConventions(c asset.Conventions) Option {
	return func(o *Orchestrator) {
		o.conv = c
	}
}

// WithCadence sets how hip keys are copied onto the root bone.
func WithCadence(c curveops.Cadence) Option {
	return func(o *Orchestrator) {
		o.cadence = c
	}
}

// WithLoopSuffix sets the clip-name suffix that marks a looping track.
func WithLoopSuffix(s string) Option {
	return func(o *Orchestrator) {
		o.loopSuffix = s
	}
}

// WithReferenceClip names the clip whose skeleton receives every track.
func WithReferenceClip(name string) Option {
	return func(o *Orchestrator) {
		o.reference = name
	}
}

// WithExporter enables the distribution export. Without it only the project
// file is written.
func WithExporter(e Exporter) Option {
	return func(o *Orchestrator) {
		o.exporter = e
	}
}

// WithOutputExt sets the project and export file extensions.
func WithOutputExt(project, export string) Option {
	return func(o *Orchestrator) {
		o.projectExt = project
		o.exportExt = export
	}
}

// WithLogger sets the logger used by the run and every component it builds.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// Orchestrator runs merge batches. It holds no per-run state; every Run
// builds a fresh reference skeleton.
type Orchestrator struct {
	importer   asset.Importer
	saver      Saver
	exporter   Exporter
	conv       asset.Conventions
	cadence    curveops.Cadence
	loopSuffix string
	reference  string
	projectExt string
	exportExt  string
	logger     *slog.Logger
}

// New returns an Orchestrator importing clips with importer and saving the
// project with saver.
func New(importer asset.Importer, saver Saver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		importer:   importer,
		saver:      saver,
		conv:       asset.DefaultConventions(),
		cadence:    curveops.CadenceStrict,
		loopSuffix: accumulator.DefaultLoopSuffix,
		reference:  DefaultReferenceClip,
		projectExt: DefaultProjectExt,
		exportExt:  DefaultExportExt,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Report summarises a successful run.
type Report struct {
	Collection string
	Clips      []string
	Tracks     []string
	Project    string
	// Export is empty when the export was disabled.
	Export   string
	Duration time.Duration
}

// OutputPaths returns the project and export paths for a collection rooted at
// dir: both sit in dir's parent and are named after dir.
func OutputPaths(dir, projectExt, exportExt string) (project, export string) {
	dir = filepath.Clean(dir)
	parent, base := filepath.Dir(dir), filepath.Base(dir)
	return filepath.Join(parent, base+projectExt), filepath.Join(parent, base+exportExt)
}

// DiscoverClips lists the collection's clips with the reference clip first
// and the rest in enumeration order.
func (o *Orchestrator) DiscoverClips(src source.Collection) ([]string, error) {
	names, err := src.ListClipNames()
	if err != nil {
		return nil, fmt.Errorf("batch: list %s: %w", src.Root(), err)
	}
	out := make([]string, 0, len(names))
	found := false
	for _, n := range names {
		if n == o.reference {
			found = true
			continue
		}
		out = append(out, n)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q not found in %s", apperr.ErrMissingReferenceClip, o.reference, src.Root())
	}
	return append([]string{o.reference}, out...), nil
}

// Run merges every clip of src onto the reference skeleton, saves the
// project and, when an exporter is set, exports it. A failing clip aborts the
// run before any artifact is written.
func (o *Orchestrator) Run(src source.Collection) (*Report, error) {
	started := time.Now()
	names, err := o.DiscoverClips(src)
	if err != nil {
		return nil, err
	}
	o.logger.Info("batch started",
		slog.String("collection", src.Name()),
		slog.Int("clips", len(names)))

	acc, err := o.prepareReference(src, names[0])
	if err != nil {
		return nil, err
	}
	for _, name := range names[1:] {
		if err := o.mergeDonor(src, acc, name); err != nil {
			return nil, err
		}
	}

	sources := make([]library.Source, 0, len(names))
	for _, name := range names {
		sum, err := src.Checksum(name)
		if err != nil {
			return nil, fmt.Errorf("batch: checksum %q: %w", name, err)
		}
		sources = append(sources, library.Source{Name: name, Checksum: sum})
	}

	skel := acc.Reference().Skeleton()
	project, export := OutputPaths(src.Root(), o.projectExt, o.exportExt)
	err = o.saver.Save(project, &library.Project{
		Skeleton:  skel,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("batch: save project: %w", err)
	}
	if o.exporter != nil {
		if err := o.exporter.Export(export, skel); err != nil {
			return nil, fmt.Errorf("batch: export: %w", err)
		}
	} else {
		export = ""
	}

	rep := &Report{
		Collection: src.Name(),
		Clips:      names,
		Project:    project,
		Export:     export,
		Duration:   time.Since(started),
	}
	for _, tr := range acc.Tracks() {
		rep.Tracks = append(rep.Tracks, tr.Name)
	}
	o.logger.Info("batch finished",
		slog.String("collection", rep.Collection),
		slog.Int("tracks", len(rep.Tracks)),
		slog.String("project", rep.Project),
		slog.Duration("duration", rep.Duration))
	return rep, nil
}

func (o *Orchestrator) newAsset(src source.Collection, name string) (*asset.SkeletonAsset, error) {
	path, err := src.ClipPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: clip %q: %w", apperr.ErrImport, name, err)
	}
	return asset.New(name, path, o.importer,
		asset.WithConventions(o.conv),
		asset.WithLogger(o.logger)), nil
}

func (o *Orchestrator) prepareReference(src source.Collection, name string) (*accumulator.Accumulator, error) {
	ref, err := o.newAsset(src, name)
	if err != nil {
		return nil, err
	}
	steps := []func() error{ref.Load, ref.Normalize, ref.AddRootBone, ref.BindHipsUnderRoot}
	for _, step := range steps {
		if err := step(); err != nil {
			o.logger.Error("reference failed", slog.String("clip", name), slog.String("error", err.Error()))
			return nil, err
		}
	}
	synth := rootmotion.New(
		rootmotion.WithCadence(o.cadence),
		rootmotion.WithLogger(o.logger))
	acc, err := accumulator.New(ref, synth,
		accumulator.WithLoopSuffix(o.loopSuffix),
		accumulator.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	if err := acc.CommitReference(); err != nil {
		o.logger.Error("reference failed", slog.String("clip", name), slog.String("error", err.Error()))
		return nil, err
	}
	return acc, nil
}

func (o *Orchestrator) mergeDonor(src source.Collection, acc *accumulator.Accumulator, name string) error {
	donor, err := o.newAsset(src, name)
	if err != nil {
		return err
	}
	for _, step := range []func() error{donor.Load, donor.Normalize} {
		if err := step(); err != nil {
			o.logger.Error("donor failed", slog.String("clip", name), slog.String("error", err.Error()))
			return err
		}
	}
	if err := acc.Accumulate(donor); err != nil {
		o.logger.Error("donor failed", slog.String("clip", name), slog.String("error", err.Error()))
		return err
	}
	return nil
}
