package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML config at path, validates it, and
// compiles the rule table (expanding rule-sets in declared order, then
// appending inline rules — spec.md §3 "Compilation order"). It is the
// only place that touches the filesystem beyond rule-set files.
func Load(path string) (*Config, []Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, nil, err
	}

	rules := compileRules(&cfg)
	return &cfg, rules, nil
}

// compileRules concatenates the rules produced by each rule-set (in
// declared order) and then appends the inline rules, per spec.md §3.
func compileRules(cfg *Config) []Rule {
	compiled := make([]Rule, 0, len(cfg.Route.Rule))
	for _, rs := range cfg.Route.RuleSet {
		if rs.Outbound == "" {
			// Demoted to inert by validate: a missing target never
			// contributes rules, rather than contributing rules that
			// fail lookup at match time.
			continue
		}
		compiled = append(compiled, rs.init()...)
	}
	compiled = append(compiled, cfg.Route.Rule...)
	return compiled
}

// init expands a RuleSet into the rules it contributes. A Remote set is a
// documented no-op (spec.md §3: "remote fetch is a non-goal and may
// expand to zero rules") — it never performs network I/O.
func (rs RuleSet) init() []Rule {
	switch rs.kind() {
	case RuleSetRemote:
		log.Warn().Str("rule_set", rs.Name).Str("url", rs.URL).
			Msg("remote rule-sets are not fetched; contributing zero rules")
		return nil
	default:
		return rs.loadLocal()
	}
}

func (rs RuleSet) loadLocal() []Rule {
	data, err := os.ReadFile(rs.Path)
	if err != nil {
		log.Warn().Err(err).Str("rule_set", rs.Name).Str("path", rs.Path).
			Msg("rule-set file unreadable; demoting to empty")
		return nil
	}

	var file ruleSetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Warn().Err(err).Str("rule_set", rs.Name).Str("path", rs.Path).
			Msg("rule-set file malformed; demoting to empty")
		return nil
	}

	rules := make([]Rule, 0, len(file))
	for _, r := range file {
		rules = append(rules, Rule{
			Type:     r.Type,
			Patterns: r.Source,
			Outbound: rs.Outbound,
		})
	}
	return rules
}
