package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/ironsheep/annodiff/internal/imaging"
	"github.com/ironsheep/annodiff/internal/logger"
	"github.com/ironsheep/annodiff/internal/report"
)

var (
	// ErrDestinationRequired is returned for file-only formats rendered
	// without a destination.
	ErrDestinationRequired = errors.New("destination directory required")

	// ErrDestinationExists is returned when the destination is a non-empty
	// directory and overwriting was not enabled.
	ErrDestinationExists = errors.New("destination exists and is not empty")

	// ErrUnknownFormat is returned by ParseFormat.
	ErrUnknownFormat = errors.New("unknown output format")
)

// Format is an output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatOverlay
	FormatChart
	FormatSQLite
)

var formatNames = []string{"text", "json", "overlay", "chart", "sqlite"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat converts a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatText, nil
	}
	for i, name := range formatNames {
		if s == name {
			return Format(i), nil
		}
	}
	return FormatText, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, s, strings.Join(formatNames, ", "))
}

// Formats returns the names of all formats.
func Formats() []string {
	return append([]string(nil), formatNames...)
}

// fileOnly reports whether the format can only be written to a directory.
func (f Format) fileOnly() bool {
	return f == FormatOverlay || f == FormatChart || f == FormatSQLite
}

// DefaultMaxEdge bounds the longer edge of overlay images.
const DefaultMaxEdge = 1600

type settings struct {
	stdout    io.Writer
	overwrite bool
	workers   int
	cache     *imaging.ImageCache
	maxEdge   int
	log       *slog.Logger
}

// Option configures a Renderer.
type Option func(*settings)

// WithStdout sets where text and json output go when no destination is
// given. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(s *settings) { s.stdout = w }
}

// WithOverwrite allows rendering into a non-empty destination directory.
func WithOverwrite(overwrite bool) Option {
	return func(s *settings) { s.overwrite = overwrite }
}

// WithWorkers bounds how many per-item files are written concurrently.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithImageCache shares a source image cache between renders.
func WithImageCache(c *imaging.ImageCache) Option {
	return func(s *settings) { s.cache = c }
}

// WithMaxEdge bounds the longer edge of overlay images in pixels. Zero keeps
// the source size.
func WithMaxEdge(px int) Option {
	return func(s *settings) { s.maxEdge = px }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// Renderer writes a DiffReport in one of the supported formats. It never
// modifies the report.
type Renderer struct {
	settings
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	s := settings{
		stdout:  os.Stdout,
		workers: runtime.NumCPU(),
		maxEdge: DefaultMaxEdge,
		log:     logger.DefaultLogger,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.cache == nil {
		s.cache = imaging.NewImageCache()
	}
	return &Renderer{settings: s}
}

// Render writes rep in format. With an empty dest, text and json are written
// to the configured stdout; the other formats require a destination
// directory, which is created if missing.
func (r *Renderer) Render(ctx context.Context, rep *report.DiffReport, format Format, dest string) error {
	if dest == "" {
		switch {
		case format.fileOnly():
			return fmt.Errorf("%s output: %w", format, ErrDestinationRequired)
		case format == FormatJSON:
			return writeJSON(r.stdout, rep)
		default:
			return writeText(r.stdout, rep)
		}
	}

	if err := prepareDestination(dest, r.overwrite); err != nil {
		return err
	}
	r.log.Info("saving diff", "dest", dest, "format", format.String())

	switch format {
	case FormatText:
		return r.renderTextTree(ctx, rep, dest)
	case FormatJSON:
		return r.renderJSONTree(ctx, rep, dest)
	case FormatOverlay:
		return r.renderOverlays(ctx, rep, dest)
	case FormatChart:
		return r.renderCharts(rep, dest)
	case FormatSQLite:
		return r.renderSQLite(ctx, rep, dest)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// prepareDestination creates dest or checks that it may be written to.
func prepareDestination(dest string, overwrite bool) error {
	info, err := os.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("failed to create destination: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat destination: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dest)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("failed to read destination: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("%s: %w", dest, ErrDestinationExists)
	}
	return nil
}
