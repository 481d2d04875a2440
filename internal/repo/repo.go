// Package repo persists tripline entities in SQLite.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tripline/internal/domain"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

// ProjectPage selects a page of a user's projects.
type ProjectPage struct {
	Page  int
	Size  int
	Sort  string // name | created_on | duration_days | planned_date
	Order string // asc | desc
}

var projectSortColumns = map[string]string{
	"name":          "name",
	"created_on":    "created_on",
	"duration_days": "duration_days",
	"planned_date":  "planned_date",
}

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	var planned sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.DurationDays, &planned, &p.CreatedOn)
	if err != nil {
		return domain.Project{}, err
	}
	if planned.Valid {
		p.PlannedDate = &planned.String
	}
	return p, nil
}

func (r *Repo) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO travel_projects (id, user_id, name, duration_days, planned_date, created_on)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.DurationDays, nullable(p.PlannedDate), p.CreatedOn)
	return err
}

func (r *Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, name, duration_days, planned_date, created_on
		 FROM travel_projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProjects(ctx context.Context, userID string, page ProjectPage) ([]domain.Project, int, error) {
	col, ok := projectSortColumns[page.Sort]
	if !ok {
		col = "created_on"
	}
	order := "DESC"
	if strings.EqualFold(page.Order, "asc") {
		order = "ASC"
	}
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Page <= 0 {
		page.Page = 1
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM travel_projects WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT id, user_id, name, duration_days, planned_date, created_on
		FROM travel_projects WHERE user_id = ?
		ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`, col, order)
	rows, err := r.DB.QueryContext(ctx, q, userID, page.Size, (page.Page-1)*page.Size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repo) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE travel_projects SET name = ?, duration_days = ?, planned_date = ?
		 WHERE id = ? AND user_id = ?`,
		p.Name, p.DurationDays, nullable(p.PlannedDate), p.ID, p.UserID)
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

func (r *Repo) DeleteProject(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM travel_projects WHERE id = ? AND user_id = ?`, id, userID)
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
