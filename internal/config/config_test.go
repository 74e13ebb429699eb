package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
info:
  enable: true
  level: info
route:
  default: direct
  global: direct
  rule:
    - type: domain
      source: ["example.com"]
      outbound: direct
inbound:
  - type: http
    name: in1
    host: 127.0.0.1
    port: 8080
outbound:
  - type: http
    name: direct
    host: 0.0.0.0
    port: 0
`)
	cfg, rules, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "direct", cfg.Route.Default)
	require.Len(t, rules, 1)
	assert.Equal(t, RuleDomain, rules[0].Type)
}

func TestLoad_DuplicateOutboundNamesIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: a
outbound:
  - type: http
    name: a
    host: 127.0.0.1
    port: 1
  - type: http
    name: a
    host: 127.0.0.1
    port: 2
`)
	_, _, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoad_MissingDefaultOutboundIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: ghost
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	_, _, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingGlobalOutboundIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: real
  global: ghost
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	_, _, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InlineRuleUnknownOutboundIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: real
  global: real
  rule:
    - type: domain
      source: ["example.com"]
      outbound: ghost
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	_, _, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RuleSetUnknownOutboundDemotesToInert(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: real
  global: real
  rule_set:
    - name: broken
      path: nonexistent.yaml
      outbound: ghost
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	cfg, rules, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Equal(t, "", cfg.Route.RuleSet[0].Outbound)
}

func TestLoad_RuleSetUnreadableFileDemotesToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
route:
  default: real
  global: real
  rule_set:
    - name: missing-file
      path: does-not-exist.yaml
      outbound: real
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	_, rules, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoad_LocalRuleSetFileExpands(t *testing.T) {
	dir := t.TempDir()
	rsPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rsPath, []byte(`
- type: domain
  source: ["a.com", "b.com"]
- type: keyword
  source: ["ads"]
`), 0o600))

	path := writeConfig(t, dir, `
route:
  default: real
  global: real
  rule_set:
    - name: set1
      path: `+rsPath+`
      outbound: real
outbound:
  - type: http
    name: real
    host: 127.0.0.1
    port: 1
`)
	_, rules, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "real", rules[0].Outbound)
	assert.Equal(t, "real", rules[1].Outbound)
}

func TestEffectiveMode_DefaultsToRule(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, ModeRule, cfg.EffectiveMode())
}

func TestEffectiveMode_RespectsExplicitValue(t *testing.T) {
	cfg := &Config{Mode: ModeDirect}
	assert.Equal(t, ModeDirect, cfg.EffectiveMode())
}
