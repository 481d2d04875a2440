package repo

import (
	"context"
	"database/sql"
	"errors"

	"tripline/internal/domain"
)

func scanAILog(row interface{ Scan(...any) error }) (domain.AILog, error) {
	var l domain.AILog
	var code sql.NullInt64
	var dur sql.NullInt64
	err := row.Scan(&l.ID, &l.ProjectID, &l.UserID, &l.Prompt, &l.RequestBody,
		&l.Response, &code, &l.Status, &dur, &l.CreatedOn, &l.Version)
	if err != nil {
		return domain.AILog{}, err
	}
	if code.Valid {
		c := int(code.Int64)
		l.ResponseCode = &c
	}
	if dur.Valid {
		d := dur.Int64
		l.DurationMs = &d
	}
	return l, nil
}

// InsertAILog writes a new log row. The version is assigned here as one
// past the project's current log count.
func (r *Repo) InsertAILog(ctx context.Context, l domain.AILog) (domain.AILog, error) {
	var count int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_logs WHERE project_id = ?`, l.ProjectID).Scan(&count); err != nil {
		return domain.AILog{}, err
	}
	l.Version = count + 1
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO ai_logs (id, project_id, user_id, prompt, request_body, response,
		 response_code, status, duration_ms, created_on, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, l.UserID, l.Prompt, l.RequestBody, l.Response,
		nullableInt(l.ResponseCode), l.Status, nullableInt64(l.DurationMs), l.CreatedOn, l.Version)
	if err != nil {
		return domain.AILog{}, err
	}
	return l, nil
}

// UpdateAILog records the terminal outcome of a pending log row.
func (r *Repo) UpdateAILog(ctx context.Context, id string, status, response string, responseCode *int, durationMs *int64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE ai_logs SET status = ?, response = ?, response_code = ?, duration_ms = ?
		 WHERE id = ?`,
		status, response, nullableInt(responseCode), nullableInt64(durationMs), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AILogPage selects a page of a project's logs, newest first.
type AILogPage struct {
	Page int
	Size int
}

func (r *Repo) ListAILogs(ctx context.Context, projectID string, page AILogPage) ([]domain.AILog, int, error) {
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Page <= 0 {
		page.Page = 1
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_logs WHERE project_id = ?`, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, project_id, user_id, prompt, request_body, response, response_code,
		 status, duration_ms, created_on, version
		 FROM ai_logs WHERE project_id = ?
		 ORDER BY version DESC LIMIT ? OFFSET ?`,
		projectID, page.Size, (page.Page-1)*page.Size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.AILog{}
	for rows.Next() {
		l, err := scanAILog(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// LatestSuccessAILog returns the most recent successful log for a
// project, which holds the current plan.
func (r *Repo) LatestSuccessAILog(ctx context.Context, projectID string) (domain.AILog, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, project_id, user_id, prompt, request_body, response, response_code,
		 status, duration_ms, created_on, version
		 FROM ai_logs WHERE project_id = ? AND status = ?
		 ORDER BY version DESC LIMIT 1`,
		projectID, domain.AILogSuccess)
	l, err := scanAILog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AILog{}, ErrNotFound
	}
	return l, err
}
