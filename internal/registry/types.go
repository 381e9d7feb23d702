// Package registry implements the in-process, disk-backed Server Registry
// (spec.md §4.2): the authoritative map of server id -> (launch spec,
// capability set, health snapshot), eagerly persisted to a JSON file after
// every mutation.
package registry

import (
	"sort"
	"time"
)

// TransportKind identifies which adapter family a server's launch spec
// targets. Stdio is the only transport shipped by this module; future
// variants (http, socket) are represented the same way so the adapter
// framework can select on the string without a type switch.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
)

// LaunchSpec is the transport-specific data needed to bring a server online.
// For Stdio, Command/Args/Env are used; future transports would add their
// own fields (e.g. URL for an HTTP variant) without breaking this shape.
type LaunchSpec struct {
	Kind    TransportKind     `json:"kind"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Status is one of the four health states from spec.md §3.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// HealthSnapshot is the single health record attached to a Server.
type HealthSnapshot struct {
	Status            Status    `json:"status"`
	LastProbeAt       time.Time `json:"last_probe_at"`
	LastSuccessAt     time.Time `json:"last_success_at"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	EWMAResponseTime  float64   `json:"ewma_response_time"`
	hasResponseTime   bool
}

// Server is a registered MCP endpoint.
type Server struct {
	ID           string              `json:"id"`
	LaunchSpec   LaunchSpec          `json:"launch_spec"`
	Capabilities map[string]struct{} `json:"-"`
	Tags         map[string]struct{} `json:"-"`
	DisplayName  string              `json:"display_name"`
	Description  string              `json:"description"`
	Health       HealthSnapshot      `json:"-"`
}

// CapabilitySet returns a sorted slice view of a server's capabilities.
func (s *Server) CapabilitySet() []string {
	return setToSortedSlice(s.Capabilities)
}

// TagSet returns a sorted slice view of a server's tags.
func (s *Server) TagSet() []string {
	return setToSortedSlice(s.Tags)
}

func setToSortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
