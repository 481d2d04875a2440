package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/aiplan"
	"tripline/internal/repo"
)

func registerPlan(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-plan",
		Method:      http.MethodPost,
		Path:        "/projects/{projectId}/plan",
		Summary:     "Generate an AI travel plan",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                     `path:"projectId" format:"uuid"`
		Body      aiplan.GeneratePlanCommand `json:"body"`
	}) (*struct {
		Body PlanResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plan, err := cfg.Planner.GeneratePlan(ctx, input.ProjectID, userID, input.Body, bodyBytes(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanResponse `json:"body"`
		}{Body: PlanResponse{Schedule: plan.Schedule}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/plan",
		Summary:     "Get the latest generated plan",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
	}) (*struct {
		Body PlanResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		entry, err := cfg.Repo.LatestSuccessAILog(ctx, p.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "No plan has been generated for this project", nil)
			}
			return nil, handleError(err)
		}
		var plan aiplan.PlanResponse
		if err := json.Unmarshal([]byte(entry.Response), &plan); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanResponse `json:"body"`
		}{Body: PlanResponse{
			Schedule:  plan.Schedule,
			Version:   entry.Version,
			CreatedOn: entry.CreatedOn,
		}}, nil
	})
}

func registerLogs(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/projects/{projectId}/logs",
		Summary:     "List AI generation logs",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"projectId" format:"uuid"`
		Page      int    `query:"page" minimum:"1" default:"1"`
		Size      int    `query:"size" minimum:"1" maximum:"100" default:"20"`
	}) (*struct {
		Body AILogListResponse `json:"body"`
	}, error) {
		p, apiErr := ownedProject(ctx, cfg, input.ProjectID)
		if apiErr != nil {
			return nil, apiErr
		}
		items, total, err := cfg.Repo.ListAILogs(ctx, p.ID, repo.AILogPage{
			Page: input.Page,
			Size: input.Size,
		})
		if err != nil {
			return nil, handleError(err)
		}
		data := make([]AILogResponse, 0, len(items))
		for _, l := range items {
			data = append(data, aiLogResponse(l))
		}
		return &struct {
			Body AILogListResponse `json:"body"`
		}{Body: AILogListResponse{
			Data: data,
			Meta: Meta{Page: input.Page, Size: input.Size, Total: total},
		}}, nil
	})
}
