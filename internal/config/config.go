// Package config loads annodiff settings.
//
// Values are resolved by viper in this order: command-line flags bound with
// BindFlags, ANNODIFF_* environment variables, a YAML config file, and the
// defaults below. Keys use underscores; the matching environment variable is
// the upper-cased key with the ANNODIFF_ prefix (iou_thresh becomes
// ANNODIFF_IOU_THRESH).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/annodiff/internal/compare"
	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/render"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ANNODIFF"

// Keys.
const (
	KeyProject       = "project"
	KeyDest          = "dest"
	KeyFormat        = "output_format"
	KeyIoUThreshold  = "iou_thresh"
	KeyConfThreshold = "conf_thresh"
	KeyReference     = "reference"
	KeyStrategy      = "strategy"
	KeyGroups        = "groups"
	KeyWorkers       = "workers"
	KeyItemTimeout   = "item_timeout"
	KeyOverwrite     = "overwrite"
	KeyLabelMap      = "label_map"
	KeyVerbose       = "verbose"
	KeyMetricsFile   = "metrics_file"
	KeyOTLPEndpoint  = "otlp_endpoint"
	KeyMaxEdge       = "max_edge"
)

// ErrInvalid marks configuration errors.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved set of diff settings.
type Config struct {
	Project       string            `mapstructure:"project"`
	Dest          string            `mapstructure:"dest"`
	Format        string            `mapstructure:"output_format"`
	IoUThreshold  float64           `mapstructure:"iou_thresh"`
	ConfThreshold float64           `mapstructure:"conf_thresh"`
	Reference     string            `mapstructure:"reference"`
	Strategy      string            `mapstructure:"strategy"`
	Groups        bool              `mapstructure:"groups"`
	Workers       int               `mapstructure:"workers"`
	ItemTimeout   time.Duration     `mapstructure:"item_timeout"`
	Overwrite     bool              `mapstructure:"overwrite"`
	LabelMap      map[string]string `mapstructure:"label_map"`
	Verbose       bool              `mapstructure:"verbose"`
	MetricsFile   string            `mapstructure:"metrics_file"`
	OTLPEndpoint  string            `mapstructure:"otlp_endpoint"`
	MaxEdge       int               `mapstructure:"max_edge"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProject, ".")
	v.SetDefault(KeyDest, "")
	v.SetDefault(KeyFormat, "text")
	v.SetDefault(KeyIoUThreshold, compare.DefaultIoUThreshold)
	v.SetDefault(KeyConfThreshold, compare.DefaultConfThreshold)
	v.SetDefault(KeyReference, "first")
	v.SetDefault(KeyStrategy, "greedy")
	v.SetDefault(KeyGroups, false)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyItemTimeout, time.Duration(0))
	v.SetDefault(KeyOverwrite, false)
	v.SetDefault(KeyLabelMap, map[string]string{})
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyOTLPEndpoint, "")
	v.SetDefault(KeyMaxEdge, render.DefaultMaxEdge)
}

// BindFlags binds command flags to keys. Flag names use dashes where keys use
// underscores; flags missing from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyProject:       "project",
		KeyDest:          "dest",
		KeyFormat:        "output-format",
		KeyIoUThreshold:  "iou-thresh",
		KeyConfThreshold: "conf-thresh",
		KeyReference:     "reference",
		KeyStrategy:      "strategy",
		KeyGroups:        "groups",
		KeyWorkers:       "workers",
		KeyItemTimeout:   "item-timeout",
		KeyOverwrite:     "overwrite",
		KeyLabelMap:      "label-map",
		KeyVerbose:       "verbose",
		KeyMetricsFile:   "metrics-file",
		KeyOTLPEndpoint:  "otlp-endpoint",
		KeyMaxEdge:       "max-edge",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration. file may be empty.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrInvalid, file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks thresholds and enumerated values.
func (c *Config) Validate() error {
	if !compare.ValidThreshold(c.IoUThreshold) {
		return fmt.Errorf("%w: iou_thresh %v: %w", ErrInvalid, c.IoUThreshold, compare.ErrInvalidThreshold)
	}
	if !compare.ValidThreshold(c.ConfThreshold) {
		return fmt.Errorf("%w: conf_thresh %v: %w", ErrInvalid, c.ConfThreshold, compare.ErrInvalidThreshold)
	}
	if _, err := compare.ParseSide(c.Reference); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := match.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if c.ItemTimeout < 0 {
		return fmt.Errorf("%w: item_timeout must not be negative", ErrInvalid)
	}
	if c.MaxEdge < 0 {
		return fmt.Errorf("%w: max_edge must not be negative", ErrInvalid)
	}
	return nil
}

// ComparatorOptions converts the configuration to comparator options. The
// configuration must have passed Validate.
func (c *Config) ComparatorOptions(log *slog.Logger) []compare.Option {
	side, _ := compare.ParseSide(c.Reference)
	strategy, _ := match.ParseStrategy(c.Strategy)

	opts := []compare.Option{
		compare.WithIoUThreshold(c.IoUThreshold),
		compare.WithConfThreshold(c.ConfThreshold),
		compare.WithReference(side),
		compare.WithStrategy(strategy),
		compare.WithGroups(c.Groups),
		compare.WithItemTimeout(c.ItemTimeout),
		compare.WithLogger(log),
	}
	if c.Workers > 0 {
		opts = append(opts, compare.WithWorkers(c.Workers))
	}
	if len(c.LabelMap) > 0 {
		opts = append(opts, compare.WithLabelMapping(c.LabelMap))
	}
	return opts
}
