package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"tripline/internal/domain"
	"tripline/internal/repo"
)

func registerNotes(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/projects/{projectId}/notes",
		Summary:       "Add note to project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId" format:"uuid"`
		Body      CreateNoteRequest `json:"body"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		n := domain.Note{
			ID:        uuid.NewString(),
			ProjectID: p.ID,
			Content:   input.Body.Content,
			Priority:  input.Body.Priority,
			PlaceTags: input.Body.PlaceTags,
			UpdatedOn: cfg.Now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.CreateNote(ctx, n); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/notes",
		Summary:     "List project notes",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
		Page      int    `query:"page" minimum:"1" default:"1"`
		Size      int    `query:"size" minimum:"1" maximum:"100" default:"20"`
		Priority  int    `query:"priority" minimum:"1" maximum:"3" required:"false"`
		PlaceTag  string `query:"place_tag" required:"false"`
	}) (*struct {
		Body NoteListResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		items, total, err := cfg.Repo.ListNotes(ctx, p.ID, repo.NotePage{
			Page:     input.Page,
			Size:     input.Size,
			Priority: input.Priority,
			PlaceTag: input.PlaceTag,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteListResponse `json:"body"`
		}{Body: NoteListResponse{
			Data: mapNotes(items),
			Meta: Meta{Page: input.Page, Size: input.Size, Total: total},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPut,
		Path:        "/projects/{projectId}/notes/{noteId}",
		Summary:     "Update note",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"projectId" format:"uuid"`
		NoteID    string            `path:"noteId" format:"uuid"`
		Body      UpdateNoteRequest `json:"body"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		n, err := cfg.Repo.GetNote(ctx, input.NoteID)
		if err != nil || n.ProjectID != p.ID {
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return nil, handleError(err)
			}
			return nil, newAPIError(http.StatusNotFound, "Note not found", nil)
		}
		if input.Body.Content != nil {
			n.Content = *input.Body.Content
		}
		if input.Body.Priority != nil {
			n.Priority = *input.Body.Priority
		}
		if input.Body.PlaceTags != nil {
			n.PlaceTags = input.Body.PlaceTags
		}
		n.UpdatedOn = cfg.Now().UTC().Format(time.RFC3339)
		if err := cfg.Repo.UpdateNote(ctx, n); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-note",
		Method:      http.MethodDelete,
		Path:        "/projects/{projectId}/notes/{noteId}",
		Summary:     "Delete note",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
		NoteID    string `path:"noteId" format:"uuid"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		if err := cfg.Repo.DeleteNote(ctx, input.NoteID, p.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "Note not found", nil)
			}
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"message": "Note deleted"}}, nil
	})
}
