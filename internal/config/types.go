// Package config holds the typed representation of a proxy configuration
// file: inbound/outbound declarations, the route table, and the ambient
// info (logging) block. Nothing in this package performs I/O beyond
// reading the config file and any local rule-set files it references.
package config

import "fmt"

// ProtocolType is the closed set of protocols an Inbound or Outbound can
// speak. New protocols are added here and in the bridge dispatch matrix,
// never by open extension.
type ProtocolType string

const (
	ProtocolHTTP   ProtocolType = "http"
	ProtocolSocks5 ProtocolType = "socks5"
)

// Mode selects how RouteManager resolves an egress. "rule" is the only
// mode the core bridging spec describes; "direct" and "global" are wired
// here as a structural override of the matcher, not a new rule kind.
type Mode string

const (
	ModeRule    Mode = "rule"
	ModeDirect  Mode = "direct"
	ModeGlobal  Mode = "global"
	defaultMode      = ModeRule
)

// Info controls the ambient logger.
type Info struct {
	Enable bool   `yaml:"enable"`
	Level  string `yaml:"level"`
}

// Endpoint is the field set shared by every Inbound and Outbound variant.
type Endpoint struct {
	Type        ProtocolType `yaml:"type"`
	Name        string       `yaml:"name"`
	Host        string       `yaml:"host"`
	Port        int          `yaml:"port"`
	AuthEnable  bool         `yaml:"auth_enable"`
	Username    string       `yaml:"username"`
	Password    string       `yaml:"password"`
}

// Addr renders host:port for dialing or listening.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// RuleType distinguishes exact-match rules from substring rules.
type RuleType string

const (
	RuleDomain  RuleType = "domain"
	RuleKeyword RuleType = "keyword"
)

// Rule is one compiled matching predicate plus the egress it selects.
type Rule struct {
	Type     RuleType `yaml:"type"`
	Patterns []string `yaml:"source"`
	Outbound string   `yaml:"outbound"`
}

// RuleSetType distinguishes a local file-backed rule-set from a remote
// (unimplemented, always-empty) one.
type RuleSetType string

const (
	RuleSetLocal  RuleSetType = "local"
	RuleSetRemote RuleSetType = "remote"
)

// RuleSet is a named batch of rules loaded at startup, all sharing one
// target outbound. Type is inferred from the fields: a RuleSet with a
// non-empty URL is Remote, otherwise it is Local.
type RuleSet struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Outbound string `yaml:"outbound"`
	URL      string `yaml:"url"`
}

func (rs RuleSet) kind() RuleSetType {
	if rs.URL != "" {
		return RuleSetRemote
	}
	return RuleSetLocal
}

// ruleSetFile is the schema of a local rule-set file: a bare YAML array of
// {type, source} entries, all adopting the owning RuleSet's Outbound.
type ruleSetFile []struct {
	Type   RuleType `yaml:"type"`
	Source []string `yaml:"source"`
}

// Route is the routing declaration block: inline rules, rule-sets, and
// the two named fallback egresses.
type Route struct {
	Default  string    `yaml:"default"`
	Global   string    `yaml:"global"`
	Rule     []Rule    `yaml:"rule"`
	RuleSet  []RuleSet `yaml:"rule_set"`
}

// Config is the root of the YAML document described in spec.md §6.
type Config struct {
	Info      Info       `yaml:"info"`
	Mode      Mode       `yaml:"mode"`
	Route     Route      `yaml:"route"`
	Inbound   []Endpoint `yaml:"inbound"`
	Outbound  []Endpoint `yaml:"outbound"`
}

// EffectiveMode returns Mode with the "rule" default applied when the
// config omits the field.
func (c *Config) EffectiveMode() Mode {
	if c.Mode == "" {
		return defaultMode
	}
	return c.Mode
}
