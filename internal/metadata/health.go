package metadata

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mcprouter/internal/rerr"
	"mcprouter/pkg/ewma"
)

// UpdateHealth applies the same algorithm as registry.Registry.UpdateHealth
// (spec.md §4.2/§4.3's shared EWMA note): an Online measurement resets
// error_count, stamps last_successful_connection, and folds responseTime
// into avg_response_time via pkg/ewma; any other status increments
// error_count and leaves last_successful_connection untouched. last_check is
// always refreshed.
func (s *Store) UpdateHealth(ctx context.Context, id string, status string, responseTime *float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.Registry("UpdateHealth", err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var errCount sql.NullInt64
	var avgResponseTime sql.NullFloat64
	row := tx.QueryRowContext(ctx, `SELECT error_count, avg_response_time FROM server_health WHERE server_id = ?`, id)
	if err := row.Scan(&errCount, &avgResponseTime); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return rerr.Registry("UpdateHealth", err, "failed to read current health for %s", id)
		}
	}
	currentErrCount := int(errCount.Int64)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	newErrCount := currentErrCount
	newAvg := avgResponseTime
	var lastSuccess any

	if status == "online" {
		newErrCount = 0
		lastSuccess = now
		if responseTime != nil {
			// avgResponseTime.Valid is the explicit "has a prior measurement"
			// signal (the column is nullable precisely so a genuine 0.0s
			// sample can't be confused with "never measured") — the same
			// distinction registry.HealthSnapshot.hasResponseTime makes, so
			// the two EWMA write paths can never drift (see DESIGN.md).
			newAvg = sql.NullFloat64{
				Float64: ewma.Next(avgResponseTime.Float64, avgResponseTime.Valid, *responseTime),
				Valid:   true,
			}
		}
	} else {
		newErrCount = currentErrCount + 1
		lastSuccess = nil
	}

	var newAvgArg any
	if newAvg.Valid {
		newAvgArg = newAvg.Float64
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO server_health (server_id, status, last_check, last_successful_connection, error_count, avg_response_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			status = excluded.status,
			last_check = excluded.last_check,
			last_successful_connection = COALESCE(excluded.last_successful_connection, server_health.last_successful_connection),
			error_count = excluded.error_count,
			avg_response_time = excluded.avg_response_time
	`, id, status, now, lastSuccess, newErrCount, newAvgArg)
	if err != nil {
		return rerr.Registry("UpdateHealth", err, "failed to upsert health for %s", id)
	}

	if err := tx.Commit(); err != nil {
		return rerr.Registry("UpdateHealth", err, "failed to commit transaction")
	}
	return nil
}
