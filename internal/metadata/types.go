// Package metadata implements the durable relational store (spec.md §4.3):
// ground truth about servers, capabilities, tools, usage telemetry, and
// tags, backed by modernc.org/sqlite (pure-Go, no cgo) through database/sql.
package metadata

import "time"

// ServerRow is the durable record for one server.
type ServerRow struct {
	ID            string
	Name          string
	Description   string
	TransportKind string
	Command       string
	Args          []string
	Env           map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Capabilities []CapabilityRow
	Tools        []ToolRow
	Tags         []string
	Health       HealthRow
}

// CapabilityRow is a first-class capability entity, referenced by many servers.
type CapabilityRow struct {
	ID          string
	Name        string
	Description string
}

// ToolRow is a tool advertised by a server.
type ToolRow struct {
	ID          string
	ServerID    string
	Name        string
	Description string
	Schema      string // raw JSON
}

// HealthRow mirrors the server_health table; distinct from registry.HealthSnapshot
// because the store tracks an error_count/avg_response_time pair rather than
// the registry's consecutive_errors/ewma_response_time pair, though both are
// updated by the same formula (see UpdateHealth).
type HealthRow struct {
	ServerID                 string
	Status                   string
	LastCheck                *time.Time
	LastSuccessfulConnection *time.Time
	ErrorCount               int
	AvgResponseTime          float64
}

// UsageRow is one recorded tool invocation.
type UsageRow struct {
	ID        string
	ServerID  string
	ToolName  string
	Duration  float64
	Success   bool
	Timestamp time.Time
}

// UsageStats summarizes server_usage rows for a server over a trailing window.
type UsageStats struct {
	ServerID        string
	WindowDays      int
	TotalCalls      int
	SuccessfulCalls int
	FailedCalls     int
	AvgDuration     float64
	ByTool          map[string]int
}

// CapabilityCount pairs a capability with the number of servers advertising it.
type CapabilityCount struct {
	Name        string
	Description string
	ServerCount int
}

// ServerInput is the idempotent upsert payload for upsert_server: everything
// needed to (re)create a server's row plus its capabilities/tools/tags in one
// transaction.
type ServerInput struct {
	ID            string
	Name          string
	Description   string
	TransportKind string
	Command       string
	Args          []string
	Env           map[string]string
	Capabilities  []CapabilityInput
	Tools         []ToolInput
	Tags          []string
}

// CapabilityInput names a capability to attach to a server; Description is
// only used the first time a capability with that name is seen.
type CapabilityInput struct {
	Name        string
	Description string
}

// ToolInput describes a tool to attach to a server.
type ToolInput struct {
	Name        string
	Description string
	Schema      string
}
