// Package route implements the rule-based egress selector (spec.md §4.1,
// C2): a total, non-blocking function from a target host to an outbound
// name.
package route

import (
	"strings"

	"github.com/renmatsu/ferry/internal/config"
)

// Manager is RouteManager: an immutable, lock-free, total mapping from a
// target host to an outbound name. Built once at startup and shared by
// every connection goroutine thereafter.
type Manager struct {
	rules   []config.Rule
	def     string
	global  string
	mode    config.Mode
}

// New compiles a Manager from the already-expanded rule list (rule-sets
// concatenated, then inline rules — see config.Load) and the route
// defaults. mode selects whether Switch consults the rule table at all
// (spec.md §9 Open Question #3, resolved in SPEC_FULL.md §6.4).
func New(rules []config.Rule, def, global string, mode config.Mode) *Manager {
	return &Manager{rules: rules, def: def, global: global, mode: mode}
}

// Switch returns the outbound name selected for targetHost. It never
// fails and never blocks: matching is pure string comparison over an
// already-compiled, already-validated rule list.
//
// In mode "direct", the rule table is skipped and Default is always
// returned. In mode "global", Global is always returned. In mode "rule"
// (the default), rules are tried in order; the first match wins; no match
// falls back to Default.
func (m *Manager) Switch(targetHost string) string {
	switch m.mode {
	case config.ModeDirect:
		return m.def
	case config.ModeGlobal:
		return m.global
	default:
		for _, r := range m.rules {
			if ruleMatches(r, targetHost) {
				return r.Outbound
			}
		}
		return m.def
	}
}

func ruleMatches(r config.Rule, host string) bool {
	switch r.Type {
	case config.RuleDomain:
		for _, p := range r.Patterns {
			if p == host {
				return true
			}
		}
	case config.RuleKeyword:
		for _, p := range r.Patterns {
			// A pattern equal to "" matches every non-empty host: a
			// documented hazard (spec.md §4.1), not guarded against here.
			if host != "" && strings.Contains(host, p) {
				return true
			}
		}
	}
	return false
}
