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

// ownedProject loads a project and enforces ownership. A missing
// project and a foreign one are both reported as 404.
func ownedProject(ctx context.Context, cfg Config, projectID string) (domain.Project, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return domain.Project{}, authErr
	}
	p, err := cfg.Repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, newAPIError(http.StatusNotFound, "Project not found", nil)
		}
		return domain.Project{}, handleError(err)
	}
	if p.UserID != userID {
		return domain.Project{}, newAPIError(http.StatusNotFound, "Project not found", nil)
	}
	return p, nil
}

func registerProjects(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p := domain.Project{
			ID:           uuid.NewString(),
			UserID:       userID,
			Name:         input.Body.Name,
			DurationDays: input.Body.DurationDays,
			PlannedDate:  input.Body.PlannedDate,
			CreatedOn:    cfg.Now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.CreateProject(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Page  int    `query:"page" minimum:"1" default:"1"`
		Size  int    `query:"size" minimum:"1" maximum:"100" default:"20"`
		Sort  string `query:"sort" enum:"name,created_on,duration_days,planned_date" default:"created_on"`
		Order string `query:"order" enum:"asc,desc" default:"desc"`
	}) (*struct {
		Body ProjectListResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, total, err := cfg.Repo.ListProjects(ctx, userID, repo.ProjectPage{
			Page:  input.Page,
			Size:  input.Size,
			Sort:  input.Sort,
			Order: input.Order,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectListResponse `json:"body"`
		}{Body: ProjectListResponse{
			Data: mapProjects(items),
			Meta: Meta{Page: input.Page, Size: input.Size, Total: total},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}",
		Summary:     "Get project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{projectId}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"projectId" format:"uuid"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		if input.Body.Name != nil {
			p.Name = *input.Body.Name
		}
		if input.Body.DurationDays != nil {
			p.DurationDays = *input.Body.DurationDays
		}
		if input.Body.PlannedDate != nil {
			p.PlannedDate = input.Body.PlannedDate
		}
		if err := cfg.Repo.UpdateProject(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{projectId}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		if err := cfg.Repo.DeleteProject(ctx, p.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"message": "Project deleted"}}, nil
	})
}
