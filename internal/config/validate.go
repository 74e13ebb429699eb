package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ValidationError is a fatal config problem: a duplicate name or a
// reference to a nonexistent outbound. Load aborts on the first
// one returned by validate.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "config: " + e.Reason
}

// validate enforces the invariants of spec.md §3:
//  1. all inbound names distinct; all outbound names distinct.
//  2. default and global both name an existing outbound (fatal).
//  3. each inline rule's outbound names an existing outbound (fatal).
//  4. each rule-set's outbound names an existing outbound (warning only,
//     demotes that set to inert rather than failing the load).
func validate(cfg *Config) error {
	if err := noDuplicateNames(cfg.Inbound, "inbound"); err != nil {
		return err
	}
	if err := noDuplicateNames(cfg.Outbound, "outbound"); err != nil {
		return err
	}

	outbounds := make(map[string]struct{}, len(cfg.Outbound))
	for _, o := range cfg.Outbound {
		outbounds[o.Name] = struct{}{}
	}

	if _, ok := outbounds[cfg.Route.Default]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("route.default %q names no outbound", cfg.Route.Default)}
	}
	if _, ok := outbounds[cfg.Route.Global]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("route.global %q names no outbound", cfg.Route.Global)}
	}

	for _, r := range cfg.Route.Rule {
		if _, ok := outbounds[r.Outbound]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("inline rule targets unknown outbound %q", r.Outbound)}
		}
	}

	for i, rs := range cfg.Route.RuleSet {
		if _, ok := outbounds[rs.Outbound]; !ok {
			log.Warn().Str("rule_set", rs.Name).Str("outbound", rs.Outbound).
				Msg("rule-set targets unknown outbound; demoting to inert")
			cfg.Route.RuleSet[i].Outbound = ""
		}
	}

	return nil
}

func noDuplicateNames(endpoints []Endpoint, kind string) error {
	seen := make(map[string]struct{}, len(endpoints))
	for _, e := range endpoints {
		if _, dup := seen[e.Name]; dup {
			return &ValidationError{Reason: fmt.Sprintf("duplicate %s name: %s", kind, e.Name)}
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}
