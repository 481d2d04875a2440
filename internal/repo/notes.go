package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"tripline/internal/domain"
)

// NotePage selects a page of a project's notes, optionally filtered.
type NotePage struct {
	Page     int
	Size     int
	Priority int    // 0 means no filter
	PlaceTag string // empty means no filter
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func scanNote(row interface{ Scan(...any) error }) (domain.Note, error) {
	var n domain.Note
	var tags string
	err := row.Scan(&n.ID, &n.ProjectID, &n.Content, &n.Priority, &tags, &n.UpdatedOn)
	if err != nil {
		return domain.Note{}, err
	}
	if err := json.Unmarshal([]byte(tags), &n.PlaceTags); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (r *Repo) CreateNote(ctx context.Context, n domain.Note) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO notes (id, project_id, content, priority, place_tags, updated_on)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.ProjectID, n.Content, n.Priority, marshalTags(n.PlaceTags), n.UpdatedOn)
	return err
}

func (r *Repo) GetNote(ctx context.Context, id string) (domain.Note, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, project_id, content, priority, place_tags, updated_on
		 FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, ErrNotFound
	}
	return n, err
}

func (r *Repo) ListNotes(ctx context.Context, projectID string, page NotePage) ([]domain.Note, int, error) {
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Page <= 0 {
		page.Page = 1
	}

	where := `project_id = ?`
	args := []any{projectID}
	if page.Priority != 0 {
		where += ` AND priority = ?`
		args = append(args, page.Priority)
	}
	if page.PlaceTag != "" {
		// place_tags is a JSON array of strings.
		where += ` AND EXISTS (SELECT 1 FROM json_each(notes.place_tags) WHERE json_each.value = ?)`
		args = append(args, page.PlaceTag)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, project_id, content, priority, place_tags, updated_on
		FROM notes WHERE ` + where + ` ORDER BY updated_on DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, q, append(args, page.Size, (page.Page-1)*page.Size)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// ListProjectNotes returns every note of a project ordered by priority
// (high first) then recency. Used when assembling a plan prompt.
func (r *Repo) ListProjectNotes(ctx context.Context, projectID string) ([]domain.Note, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, project_id, content, priority, place_tags, updated_on
		 FROM notes WHERE project_id = ? ORDER BY priority ASC, updated_on DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateNote(ctx context.Context, n domain.Note) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notes SET content = ?, priority = ?, place_tags = ?, updated_on = ?
		 WHERE id = ? AND project_id = ?`,
		n.Content, n.Priority, marshalTags(n.PlaceTags), n.UpdatedOn, n.ID, n.ProjectID)
	if err != nil {
		return err
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteNote(ctx context.Context, id, projectID string) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return err
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}
