package storage

import (
	"time"

	"github.com/optiqlab/scopecore/internal/stream"
	"github.com/optiqlab/scopecore/internal/trigger"
	"go.uber.org/zap"
)

// SessionStarted records the beginning of one arm→idle acquisition
// run and returns its row ID. Recording failures are logged, never
// propagated into the acquisition path.
func (c *Client) SessionStarted(device string, mode trigger.Mode, ttype trigger.Type, at time.Time) int64 {
	res, err := c.db.Exec(
		`INSERT INTO acquisition_sessions (device, trigger_mode, trigger_type, started_at)
		 VALUES (?, ?, ?, ?)`,
		device, string(mode), string(ttype), at)
	if err != nil {
		c.logger.Error("Failed to record session start",
			zap.String("device", device),
			zap.Error(err))
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		c.logger.Error("Failed to read session ID", zap.Error(err))
		return 0
	}
	return id
}

func (c *Client) SessionEnded(sessionID int64, frames uint64, at time.Time) {
	if sessionID == 0 {
		return
	}
	if _, err := c.db.Exec(
		`UPDATE acquisition_sessions SET frames = ?, ended_at = ? WHERE id = ?`,
		frames, at, sessionID); err != nil {
		c.logger.Error("Failed to record session end",
			zap.Int64("session_id", sessionID),
			zap.Error(err))
	}
}

func (c *Client) SubscriptionClosed(device, connectionID, reason string, stats stream.BufferStats) {
	if _, err := c.db.Exec(
		`INSERT INTO subscription_stats (device, connection_id, closed_reason, pushed, delivered, dropped, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device, connectionID, reason, stats.Pushed, stats.Delivered, stats.Dropped, time.Now()); err != nil {
		c.logger.Error("Failed to record subscription stats",
			zap.String("device", device),
			zap.String("connection", connectionID),
			zap.Error(err))
	}
}

// SessionRecord is one completed or in-progress acquisition run.
type SessionRecord struct {
	ID          int64      `json:"id"`
	Device      string     `json:"device"`
	TriggerMode string     `json:"trigger_mode"`
	TriggerType string     `json:"trigger_type"`
	Frames      uint64     `json:"frames"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// RecentSessions returns the most recent acquisition runs, newest
// first.
func (c *Client) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, device, trigger_mode, trigger_type, frames, started_at, ended_at
		 FROM acquisition_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Device, &rec.TriggerMode, &rec.TriggerType,
			&rec.Frames, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
