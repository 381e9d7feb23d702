package metadata

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mcprouter/internal/rerr"
)

// AppendUsage records one tool invocation.
func (s *Store) AppendUsage(ctx context.Context, serverID, toolName string, duration float64, success bool) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_usage (id, server_id, tool_name, duration, success, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, serverID, toolName, duration, boolToInt(success), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return rerr.Registry("AppendUsage", err, "failed to record usage for %s/%s", serverID, toolName)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UsageStats summarizes a server's usage over the trailing windowDays.
func (s *Store) UsageStats(ctx context.Context, serverID string, windowDays int) (UsageStats, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_name, duration, success FROM server_usage
		WHERE server_id = ? AND timestamp >= ?
	`, serverID, cutoff)
	if err != nil {
		return UsageStats{}, rerr.Registry("UsageStats", err, "failed to query usage for %s", serverID)
	}
	defer rows.Close()

	out := UsageStats{ServerID: serverID, WindowDays: windowDays, ByTool: map[string]int{}}
	var durationSum float64
	for rows.Next() {
		var toolName string
		var duration float64
		var success int
		if err := rows.Scan(&toolName, &duration, &success); err != nil {
			return UsageStats{}, rerr.Registry("UsageStats", err, "failed to scan usage row")
		}
		out.TotalCalls++
		durationSum += duration
		out.ByTool[toolName]++
		if success != 0 {
			out.SuccessfulCalls++
		} else {
			out.FailedCalls++
		}
	}
	if err := rows.Err(); err != nil {
		return UsageStats{}, rerr.Registry("UsageStats", err, "failed to iterate usage rows")
	}
	if out.TotalCalls > 0 {
		out.AvgDuration = durationSum / float64(out.TotalCalls)
	}
	return out, nil
}
