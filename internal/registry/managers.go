// Package registry implements the name-lookup tables spec.md calls
// InboundManager / OutboundManager (C3): built once from a validated
// config.Config and shared read-only across every connection goroutine.
package registry

import "github.com/renmatsu/ferry/internal/config"

// Outbounds is an immutable name -> declaration lookup table.
type Outbounds struct {
	byName map[string]config.Endpoint
}

// NewOutbounds indexes the outbound declarations by name. Config
// validation has already guaranteed the names are distinct.
func NewOutbounds(outbounds []config.Endpoint) *Outbounds {
	m := make(map[string]config.Endpoint, len(outbounds))
	for _, o := range outbounds {
		m[o.Name] = o
	}
	return &Outbounds{byName: m}
}

// Lookup returns the outbound declaration named name, if any.
func (o *Outbounds) Lookup(name string) (config.Endpoint, bool) {
	e, ok := o.byName[name]
	return e, ok
}

// Inbounds is an immutable name -> declaration lookup table, kept for
// symmetry with Outbounds even though the accept loops are driven by
// iterating config.Config.Inbound directly at startup.
type Inbounds struct {
	byName map[string]config.Endpoint
}

// NewInbounds indexes the inbound declarations by name.
func NewInbounds(inbounds []config.Endpoint) *Inbounds {
	m := make(map[string]config.Endpoint, len(inbounds))
	for _, in := range inbounds {
		m[in.Name] = in
	}
	return &Inbounds{byName: m}
}

// Lookup returns the inbound declaration named name, if any.
func (i *Inbounds) Lookup(name string) (config.Endpoint, bool) {
	e, ok := i.byName[name]
	return e, ok
}
