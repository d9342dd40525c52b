// Package timeline persists a local log of agent runs to sqlite.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service records runs, per-turn model usage, and tool executions. All
// writes are best-effort from the caller's perspective; the agent loop
// ignores returned errors.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the run log at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run row in 'running' state.
func (s *Service) StartRun(runID, model string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, model, status) VALUES (?, ?, 'running')`,
		runID, model,
	)
	return err
}

// CompleteRun records the terminal status and final answer of a run and
// accumulates its token totals.
func (s *Service) CompleteRun(runID, status, answer string, turns int) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, answer = ?, turns = ?, completed_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		status, answer, turns, runID,
	)
	return err
}

// TurnRecord captures one model call within a run.
type TurnRecord struct {
	RunID            string
	Turn             int
	FinishReason     string
	ToolCalls        int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// RecordTurn appends a turn row and adds its usage to the run totals.
func (s *Service) RecordTurn(rec TurnRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO turns (run_id, turn, finish_reason, tool_calls, prompt_tokens, completion_tokens, total_tokens, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Turn, rec.FinishReason, rec.ToolCalls,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Duration.Milliseconds(),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE runs SET prompt_tokens = prompt_tokens + ?, completion_tokens = completion_tokens + ?, total_tokens = total_tokens + ? WHERE run_id = ?`,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.RunID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ToolSpanRecord captures one tool execution within a turn.
type ToolSpanRecord struct {
	RunID     string
	Turn      int
	CallID    string
	Tool      string
	OK        bool
	ResultLen int
	Duration  time.Duration
}

// RecordToolSpan appends a tool span row.
func (s *Service) RecordToolSpan(rec ToolSpanRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_spans (run_id, turn, call_id, tool, ok, result_len, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Turn, rec.CallID, rec.Tool, rec.OK, rec.ResultLen,
		rec.Duration.Milliseconds(),
	)
	return err
}

// RunSummary is a read model for a completed run.
type RunSummary struct {
	RunID            string
	Model            string
	Status           string
	Answer           string
	Turns            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GetRun returns the summary row for a run.
func (s *Service) GetRun(runID string) (*RunSummary, error) {
	row := s.db.QueryRow(
		`SELECT run_id, model, status, answer, turns, prompt_tokens, completion_tokens, total_tokens
		 FROM runs WHERE run_id = ?`,
		runID,
	)
	var out RunSummary
	if err := row.Scan(&out.RunID, &out.Model, &out.Status, &out.Answer, &out.Turns,
		&out.PromptTokens, &out.CompletionTokens, &out.TotalTokens); err != nil {
		return nil, err
	}
	return &out, nil
}

// CountToolSpans returns the number of tool spans recorded for a run.
func (s *Service) CountToolSpans(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tool_spans WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// DailyTokenUsage returns the total tokens consumed by runs started today.
func (s *Service) DailyTokenUsage() (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(total_tokens), 0) FROM runs WHERE date(started_at) = date('now')`,
	).Scan(&n)
	return n, err
}
