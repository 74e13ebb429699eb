package registry

import (
	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/route"
)

// Managers bundles the three immutable, lock-free tables every connection
// goroutine reads from: inbound lookup, outbound lookup, and the route
// selector. It replaces the source's process-wide ServiceConfig singleton
// (spec.md §9 re-architecture note) with an explicit handle threaded
// through the accept loops — built once, never mutated.
type Managers struct {
	Inbound  *Inbounds
	Outbound *Outbounds
	Route    *route.Manager
}

// Build constructs a Managers from a validated Config and its compiled
// rule list. Call once at startup; the result is safe for concurrent
// read-only use by every accept loop and connection goroutine.
func Build(cfg *config.Config, rules []config.Rule) *Managers {
	return &Managers{
		Inbound:  NewInbounds(cfg.Inbound),
		Outbound: NewOutbounds(cfg.Outbound),
		Route:    route.New(rules, cfg.Route.Default, cfg.Route.Global, cfg.EffectiveMode()),
	}
}
