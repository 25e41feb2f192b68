package semaphore

import (
	"io"

	"golang.org/x/exp/slog"
)

var (
	DefaultName   = "semaphore"
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Options configures a Semaphore created with NewWithOptions.
//
// The zero value is valid and equivalent to DefaultOptions.
type Options struct {
	name   string
	logger *slog.Logger
}

// DefaultOptions returns Options with the default name and a logger that
// discards everything.
func DefaultOptions() Options {
	return Options{name: DefaultName}
}

// NewOptions returns Options for a semaphore with the given name. The name is
// used in log records, in String and as the label of exported metrics.
func NewOptions(name string) Options {
	return Options{name: name}
}

// Name returns the configured name, or DefaultName if none was set.
func (o *Options) Name() string {
	if o.name == "" {
		return DefaultName
	}
	return o.name
}

// Logger returns the configured logger, or a discarding logger if none was set.
func (o *Options) Logger() *slog.Logger {
	if o.logger == nil {
		return discardLogger
	}
	return o.logger
}

// SetName sets the name of the semaphore.
func (o *Options) SetName(name string) {
	o.name = name
}

// SetLogger sets the logger the semaphore reports unusual events to, such as
// closing with waiters still queued or releasing a permit twice.
func (o *Options) SetLogger(logger *slog.Logger) {
	o.logger = logger
}
