package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	sourceDir string
	watch     bool
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSourceDir sets the clip collection to merge.
func WithSourceDir(dir string) Option {
	return func(a *application) {
		a.sourceDir = dir
	}
}

// WithWatch keeps the application rebuilding on source changes.
func WithWatch(enabled bool) Option {
	return func(a *application) {
		a.watch = enabled
	}
}

// WithLogOutput redirects the application log, stdout by default.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
