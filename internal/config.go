package internal

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/rigmerge/internal/accumulator"
	"github.com/starford/rigmerge/internal/asset"
	"github.com/starford/rigmerge/internal/batch"
	"github.com/starford/rigmerge/internal/curveops"
	"github.com/starford/rigmerge/internal/watch"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Source   SourceConfig      `yaml:"source"`
	Output   OutputConfig      `yaml:"output"`
	Watch    WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// PipelineConfig holds the merge conventions.
type PipelineConfig struct {
	ReferenceClip string   `yaml:"reference_clip"`
	HipBone       string   `yaml:"hip_bone"`
	RootBone      string   `yaml:"root_bone"`
	BonePrefixes  []string `yaml:"bone_prefixes"`
	UnitScale     float64  `yaml:"unit_scale"`
	// ScaleAxes lists the hip location axes converted by UnitScale, as
	// "x", "y" or "z".
	ScaleAxes []string `yaml:"scale_axes"`
	UpAxis    string   `yaml:"up_axis"`
	Cadence   string   `yaml:"cadence"`
	// ImportScale is the object scale the importer places clips under.
	ImportScale float64 `yaml:"import_scale"`
	LoopSuffix  string  `yaml:"loop_suffix"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	axes := []any{"x", "y", "z"}
	err := validation.ValidateStruct(c,
		validation.Field(&c.ReferenceClip, validation.Required),
		validation.Field(&c.HipBone, validation.Required),
		validation.Field(&c.RootBone, validation.Required, validation.NotIn(c.HipBone)),
		validation.Field(&c.UnitScale, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.ScaleAxes, validation.Required, validation.Each(validation.In(axes...))),
		validation.Field(&c.UpAxis, validation.Required, validation.In(axes...)),
		validation.Field(&c.Cadence, validation.Required,
			validation.In(string(curveops.CadenceStrict), string(curveops.CadenceByTime))),
		validation.Field(&c.ImportScale, validation.Required, validation.Min(0.0).Exclusive()),
	)
	if err != nil {
		return err
	}
	if !slices.Contains(c.ScaleAxes, c.UpAxis) {
		return fmt.Errorf("scale_axes %v must include up_axis %q", c.ScaleAxes, c.UpAxis)
	}
	if c.LoopSuffix != "" && strings.HasSuffix(c.ReferenceClip, c.LoopSuffix) {
		return fmt.Errorf("reference_clip %q must not carry the loop suffix %q", c.ReferenceClip, c.LoopSuffix)
	}
	return nil
}

// Conventions converts the pipeline settings into asset conventions.
func (c *PipelineConfig) Conventions() asset.Conventions {
	conv := asset.DefaultConventions()
	conv.HipBone = c.HipBone
	conv.RootBone = c.RootBone
	conv.BonePrefixes = c.BonePrefixes
	conv.UnitScale = c.UnitScale
	conv.ScaleAxes = nil
	for _, a := range c.ScaleAxes {
		conv.ScaleAxes = append(conv.ScaleAxes, axisIndex(a))
	}
	conv.UpAxis = axisIndex(c.UpAxis)
	return conv
}

func axisIndex(a string) int {
	return int(a[0] - 'x')
}

// SourceConfig describes the clip files of a collection.
type SourceConfig struct {
	Extension string `yaml:"extension"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Extension, validation.Required, validation.By(dotExt)),
	)
}

// OutputConfig describes the artifacts of a run.
type OutputConfig struct {
	ProjectExt string `yaml:"project_ext"`
	ExportExt  string `yaml:"export_ext"`
	Export     bool   `yaml:"export"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ProjectExt, validation.Required, validation.By(dotExt)),
		validation.Field(&c.ExportExt, validation.Required, validation.By(dotExt), validation.NotIn(c.ProjectExt)),
	)
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

func dotExt(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, ".") || len(s) < 2 || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("must look like .ext")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	conv := asset.DefaultConventions()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Pipeline: PipelineConfig{
			ReferenceClip: batch.DefaultReferenceClip,
			HipBone:       conv.HipBone,
			RootBone:      conv.RootBone,
			BonePrefixes:  conv.BonePrefixes,
			UnitScale:     conv.UnitScale,
			ScaleAxes:     []string{"x", "y", "z"},
			UpAxis:        "y",
			Cadence:       string(curveops.CadenceStrict),
			ImportScale:   0.01,
			LoopSuffix:    accumulator.DefaultLoopSuffix,
		},
		Source: SourceConfig{
			Extension: ".bvh",
		},
		Output: OutputConfig{
			ProjectExt: batch.DefaultProjectExt,
			ExportExt:  batch.DefaultExportExt,
			Export:     true,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
	}
}
