package vitals

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WindowPolicy holds the window rule for every query class.
type WindowPolicy map[QueryClass]WindowRule

// DefaultPolicy returns the stock composite-fetch windows:
// point 5m trailing, cumulative midnight-to-now, slow 30d latest-only,
// sleep midnight-6h-to-now all samples, resting 24h latest-only.
func DefaultPolicy() WindowPolicy {
	return WindowPolicy{
		ClassPoint:      {Lookback: 5 * time.Minute},
		ClassCumulative: {FromMidnight: true},
		ClassSlow:       {Lookback: 30 * 24 * time.Hour, KeepLatestOnly: true},
		ClassSleep:      {FromMidnight: true, MidnightOffset: 6 * time.Hour},
		ClassResting:    {Lookback: 24 * time.Hour, KeepLatestOnly: true},
	}
}

// rawWindowRule is the on-disk YAML shape of one override file.
type rawWindowRule struct {
	Class          string `yaml:"class"`
	Lookback       string `yaml:"lookback"`
	FromMidnight   bool   `yaml:"from_midnight"`
	MidnightOffset string `yaml:"midnight_offset"`
	KeepLatestOnly bool   `yaml:"keep_latest_only"`
}

// LoadPolicyDir returns the default policy with overrides applied from
// *.yaml files in dir. Each file holds exactly one rule keyed by class.
// A missing directory is valid (zero overrides); a malformed or duplicate
// override is a startup error.
func LoadPolicyDir(dir string) (WindowPolicy, error) {
	policy := DefaultPolicy()
	if dir == "" {
		return policy, nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return policy, nil
	}
	if err != nil {
		return nil, fmt.Errorf("window policy dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("window policy path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading window policy dir: %w", err)
	}

	seen := make(map[QueryClass]string)
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading policy file %s: %w", path, err)
		}

		var raw rawWindowRule
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
		}
		if raw.Class == "" {
			continue // skip empty / comment-only files
		}

		class := QueryClass(raw.Class)
		if _, ok := policy[class]; !ok {
			return nil, fmt.Errorf("policy file %s: unknown query class %q", path, raw.Class)
		}
		if prev, dup := seen[class]; dup {
			return nil, fmt.Errorf("policy file %s: class %q already overridden by %s", path, raw.Class, prev)
		}
		seen[class] = path

		rule, err := raw.toRule()
		if err != nil {
			return nil, fmt.Errorf("policy file %s: %w", path, err)
		}
		policy[class] = rule
	}

	return policy, nil
}

func (raw rawWindowRule) toRule() (WindowRule, error) {
	rule := WindowRule{
		FromMidnight:   raw.FromMidnight,
		KeepLatestOnly: raw.KeepLatestOnly,
	}

	if raw.FromMidnight {
		if raw.Lookback != "" {
			return WindowRule{}, fmt.Errorf("lookback and from_midnight are mutually exclusive")
		}
		if raw.MidnightOffset != "" {
			off, err := ParseLookback(raw.MidnightOffset)
			if err != nil {
				return WindowRule{}, fmt.Errorf("midnight_offset: %w", err)
			}
			rule.MidnightOffset = off
		}
		return rule, nil
	}

	if raw.MidnightOffset != "" {
		return WindowRule{}, fmt.Errorf("midnight_offset requires from_midnight")
	}
	lb, err := ParseLookback(raw.Lookback)
	if err != nil {
		return WindowRule{}, err
	}
	rule.Lookback = lb
	return rule, nil
}
