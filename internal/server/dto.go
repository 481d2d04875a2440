package server

import (
	"tripline/internal/aiplan"
	"tripline/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"1"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type MeResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
}

// Meta describes one page of a paginated listing.
type Meta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

type CreateProjectRequest struct {
	Name         string  `json:"name" minLength:"1" maxLength:"200"`
	DurationDays int     `json:"duration_days" minimum:"1" maximum:"365"`
	PlannedDate  *string `json:"planned_date,omitempty" format:"date"`
}

type UpdateProjectRequest struct {
	Name         *string `json:"name,omitempty" minLength:"1" maxLength:"200"`
	DurationDays *int    `json:"duration_days,omitempty" minimum:"1" maximum:"365"`
	PlannedDate  *string `json:"planned_date,omitempty" format:"date"`
}

type ProjectResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DurationDays int     `json:"duration_days"`
	PlannedDate  *string `json:"planned_date,omitempty"`
	CreatedOn    string  `json:"created_on"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		DurationDays: p.DurationDays,
		PlannedDate:  p.PlannedDate,
		CreatedOn:    p.CreatedOn,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

type ProjectListResponse struct {
	Data []ProjectResponse `json:"data"`
	Meta Meta              `json:"meta"`
}

type CreateNoteRequest struct {
	Content   string   `json:"content" minLength:"1"`
	Priority  int      `json:"priority" minimum:"1" maximum:"3" doc:"1=high, 2=medium, 3=low"`
	PlaceTags []string `json:"place_tags,omitempty"`
}

type UpdateNoteRequest struct {
	Content   *string  `json:"content,omitempty" minLength:"1"`
	Priority  *int     `json:"priority,omitempty" minimum:"1" maximum:"3"`
	PlaceTags []string `json:"place_tags,omitempty"`
}

type NoteResponse struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Content   string   `json:"content"`
	Priority  int      `json:"priority"`
	PlaceTags []string `json:"place_tags"`
	UpdatedOn string   `json:"updated_on"`
}

func noteResponse(n domain.Note) NoteResponse {
	tags := n.PlaceTags
	if tags == nil {
		tags = []string{}
	}
	return NoteResponse{
		ID:        n.ID,
		ProjectID: n.ProjectID,
		Content:   n.Content,
		Priority:  n.Priority,
		PlaceTags: tags,
		UpdatedOn: n.UpdatedOn,
	}
}

func mapNotes(items []domain.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(items))
	for _, n := range items {
		out = append(out, noteResponse(n))
	}
	return out
}

type NoteListResponse struct {
	Data []NoteResponse `json:"data"`
	Meta Meta           `json:"meta"`
}

type PlanResponse struct {
	Schedule  []aiplan.ScheduleItem `json:"schedule"`
	Version   int                   `json:"version,omitempty"`
	CreatedOn string                `json:"createdOn,omitempty"`
}

type AILogResponse struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Status       string `json:"status"`
	ResponseCode *int   `json:"response_code,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	CreatedOn    string `json:"created_on"`
	Version      int    `json:"version"`
}

func aiLogResponse(l domain.AILog) AILogResponse {
	return AILogResponse{
		ID:           l.ID,
		ProjectID:    l.ProjectID,
		Status:       l.Status,
		ResponseCode: l.ResponseCode,
		DurationMs:   l.DurationMs,
		CreatedOn:    l.CreatedOn,
		Version:      l.Version,
	}
}

type AILogListResponse struct {
	Data []AILogResponse `json:"data"`
	Meta Meta            `json:"meta"`
}
