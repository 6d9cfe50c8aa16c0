package task

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Config is the typed per-type task configuration. Raw config maps are
// decoded and validated once, at submission, never at first use.
type Config interface {
	taskType() Type
	validate() error
}

// DiscoveryConfig configures a discovery task.
type DiscoveryConfig struct {
	// URLs are the candidate sites to verify. When empty the manager's
	// target source supplies them.
	URLs []string `mapstructure:"urls"`

	// Region optionally narrows target-source lookups.
	Region string `mapstructure:"region"`
}

func (DiscoveryConfig) taskType() Type { return TypeDiscovery }

func (c DiscoveryConfig) validate() error { return nil }

// TenderMonitorConfig configures a tender monitoring task.
type TenderMonitorConfig struct {
	// URLs are the tender pages to extract from.
	URLs []string `mapstructure:"urls"`

	// Keyword optionally filters candidates by title substring.
	Keyword string `mapstructure:"keyword"`
}

func (TenderMonitorConfig) taskType() Type { return TypeTenderMonitor }

func (c TenderMonitorConfig) validate() error { return nil }

// HospitalScanConfig configures a full hospital site scan.
type HospitalScanConfig struct {
	// URLs are the hospital sites to scan.
	URLs []string `mapstructure:"urls"`

	// MinScore is the verification score below which extraction is
	// skipped for a site. Zero means use the engine's validity threshold.
	MinScore int `mapstructure:"min_score"`
}

func (HospitalScanConfig) taskType() Type { return TypeHospitalScan }

func (c HospitalScanConfig) validate() error {
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("min_score must be within [0, 100], got %d", c.MinScore)
	}
	return nil
}

// targetURLs returns the explicit URL list carried by a config, if any.
func targetURLs(cfg Config) []string {
	switch c := cfg.(type) {
	case DiscoveryConfig:
		return c.URLs
	case TenderMonitorConfig:
		return c.URLs
	case HospitalScanConfig:
		return c.URLs
	default:
		return nil
	}
}

// decodeConfig turns a raw config map into the typed config for taskType.
func decodeConfig(taskType Type, raw map[string]any) (Config, error) {
	if !taskType.Valid() {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	var target Config
	switch taskType {
	case TypeDiscovery:
		target = &DiscoveryConfig{}
	case TypeTenderMonitor:
		target = &TenderMonitorConfig{}
	case TypeHospitalScan:
		target = &HospitalScanConfig{}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}

	if raw == nil {
		raw = map[string]any{}
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", taskType, err)
	}

	cfg := dereference(target)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", taskType, err)
	}

	return cfg, nil
}

// dereference unwraps the pointer mapstructure decoded into.
func dereference(cfg Config) Config {
	switch c := cfg.(type) {
	case *DiscoveryConfig:
		return *c
	case *TenderMonitorConfig:
		return *c
	case *HospitalScanConfig:
		return *c
	default:
		return cfg
	}
}

var errNoTargets = errors.New("no target urls configured and no target source available")
