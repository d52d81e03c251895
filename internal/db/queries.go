package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Execution event types.
const (
	EventDebate      = "debate"
	EventSequential  = "sequential"
	EventSingleAgent = "single_agent"
	EventValidation  = "validation"
	EventRetry       = "retry"
	EventSkipped     = "skipped"
	EventPaused      = "paused"
	EventCompleted   = "completed"
)

// ExecutionEvent represents a row in the execution_events table.
type ExecutionEvent struct {
	ID        int
	Project   string
	RunID     string
	Stage     string
	Event     string
	Mode      string
	Rounds    int
	Steps     int
	Agents    int
	Scores    []float64
	Detail    string
	Timestamp string
}

// LogExecutionEvent appends one event to the execution log. The log is
// append-only; nothing ever updates or deletes rows.
func (d *DB) LogExecutionEvent(e ExecutionEvent) error {
	scores := ""
	if len(e.Scores) > 0 {
		data, err := json.Marshal(e.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		scores = string(data)
	}
	_, err := d.conn.Exec(
		`INSERT INTO execution_events (project, run_id, stage, event, mode, rounds, steps, agents, scores, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Project, e.RunID, e.Stage, e.Event, e.Mode, e.Rounds, e.Steps, e.Agents, scores, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("log execution event: %w", err)
	}
	return nil
}

// LogInvocation records one agent invocation outcome.
func (d *DB) LogInvocation(runID, stage, role, model string, round int, ok bool, durationMs int) error {
	_, err := d.conn.Exec(
		`INSERT INTO invocations (run_id, stage, role, model, round, ok, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, role, model, round, ok, durationMs,
	)
	if err != nil {
		return fmt.Errorf("log invocation: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events for a project, newest first.
func (d *DB) RecentEvents(project string, limit int) ([]ExecutionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(
		`SELECT id, project, run_id, stage, event, mode, rounds, steps, agents, scores, detail, timestamp
		 FROM execution_events WHERE project = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StageEventCounts returns, per stage, the number of execution events
// recorded for a project. Only debate/sequential/single-agent execution
// events count toward compliance.
func (d *DB) StageEventCounts(project string) (map[string]int, error) {
	rows, err := d.conn.Query(
		`SELECT stage, COUNT(*) FROM execution_events
		 WHERE project = ? AND event IN (?, ?, ?)
		 GROUP BY stage`,
		project, EventDebate, EventSequential, EventSingleAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage event counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// StagesWithoutEvents returns the subset of stages that never recorded an
// execution event, preserving pipeline order. Used by the completion
// compliance check.
func (d *DB) StagesWithoutEvents(project string, stages []string) ([]string, error) {
	counts, err := d.StageEventCounts(project)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, s := range stages {
		if counts[s] == 0 {
			missing = append(missing, s)
		}
	}
	return missing, nil
}

// InvocationStats summarizes agent invocations for one run.
type InvocationStats struct {
	Total  int
	Failed int
}

// RunInvocationStats returns invocation totals for a run ID.
func (d *DB) RunInvocationStats(runID string) (*InvocationStats, error) {
	var stats InvocationStats
	err := d.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN ok THEN 0 ELSE 1 END), 0)
		 FROM invocations WHERE run_id = ?`,
		runID,
	).Scan(&stats.Total, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("query invocation stats: %w", err)
	}
	return &stats, nil
}

func scanEvents(rows *sql.Rows) ([]ExecutionEvent, error) {
	var events []ExecutionEvent
	for rows.Next() {
		var e ExecutionEvent
		var mode, scores, detail sql.NullString
		var rounds, steps, agents sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Project, &e.RunID, &e.Stage, &e.Event,
			&mode, &rounds, &steps, &agents, &scores, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Mode = mode.String
		e.Rounds = int(rounds.Int64)
		e.Steps = int(steps.Int64)
		e.Agents = int(agents.Int64)
		e.Detail = detail.String
		if scores.Valid && scores.String != "" {
			if err := json.Unmarshal([]byte(scores.String), &e.Scores); err != nil {
				return nil, fmt.Errorf("unmarshal scores: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
