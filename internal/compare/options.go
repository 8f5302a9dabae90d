package compare

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/annodiff/internal/logger"
	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/telemetry"
)

// Default thresholds.
const (
	DefaultIoUThreshold  = 0.5
	DefaultConfThreshold = 0.5
)

// Side selects which Compare argument is the reference (ground truth).
type Side int

const (
	SideFirst Side = iota
	SideSecond
)

func (s Side) String() string {
	if s == SideSecond {
		return "second"
	}
	return "first"
}

// ParseSide converts "first" or "second" to a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return SideFirst, nil
	case "second":
		return SideSecond, nil
	}
	return SideFirst, fmt.Errorf("unknown reference side %q (want first or second)", s)
}

type settings struct {
	iouThreshold  float64
	confThreshold float64
	reference     Side
	mapping       map[string]string
	strategy      match.Strategy
	groups        bool
	workers       int
	itemTimeout   time.Duration
	log           *slog.Logger
	tracer        trace.Tracer
}

func defaultSettings() settings {
	return settings{
		iouThreshold:  DefaultIoUThreshold,
		confThreshold: DefaultConfThreshold,
		workers:       runtime.NumCPU(),
		log:           logger.DefaultLogger,
	}
}

// Option configures a Comparator.
type Option func(*settings)

// WithIoUThreshold sets the inclusive overlap threshold for a pair to match.
func WithIoUThreshold(t float64) Option {
	return func(s *settings) { s.iouThreshold = t }
}

// WithConfThreshold sets the minimum score a candidate annotation needs to
// take part in matching.
func WithConfThreshold(t float64) Option {
	return func(s *settings) { s.confThreshold = t }
}

// WithReference chooses which argument of Compare is the reference side.
func WithReference(side Side) Option {
	return func(s *settings) { s.reference = side }
}

// WithLabelMapping translates candidate label names into reference label
// names before vocabularies are reconciled.
func WithLabelMapping(m map[string]string) Option {
	return func(s *settings) {
		s.mapping = make(map[string]string, len(m))
		for k, v := range m {
			s.mapping[k] = v
		}
	}
}

// WithStrategy selects the matching algorithm.
func WithStrategy(st match.Strategy) Option {
	return func(s *settings) { s.strategy = st }
}

// WithGroups enables group-aware partial matches.
func WithGroups(enabled bool) Option {
	return func(s *settings) { s.groups = enabled }
}

// WithWorkers bounds the number of items compared concurrently. Values below
// one select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithItemTimeout limits how long reading one item's annotations may take.
// Zero disables the limit.
func WithItemTimeout(d time.Duration) Option {
	return func(s *settings) { s.itemTimeout = d }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracerProvider sets the provider for run and item spans. Without it the
// global provider at the time of New is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = telemetry.Tracer(tp) }
}
