package aiplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tripline/internal/domain"
	"tripline/internal/repo"
)

// Store is the persistence surface the planner needs. *repo.Repo
// satisfies it.
type Store interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjectNotes(ctx context.Context, projectID string) ([]domain.Note, error)
	InsertAILog(ctx context.Context, l domain.AILog) (domain.AILog, error)
	UpdateAILog(ctx context.Context, id string, status, response string, responseCode *int, durationMs *int64) error
}

// Planner runs the plan-generation pipeline: ownership and note
// validation, prompt build, audited completion call, day-completeness
// check.
type Planner struct {
	Store  Store
	Chat   ChatClient
	Logger zerolog.Logger
	Now    func() time.Time
}

func NewPlanner(store Store, chat ChatClient, logger zerolog.Logger) *Planner {
	return &Planner{Store: store, Chat: chat, Logger: logger, Now: time.Now}
}

func (p *Planner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// GeneratePlan generates an itinerary for the given project. rawBody is
// the verbatim request body, recorded in the audit log. A missing
// project and a project owned by someone else are indistinguishable to
// the caller.
func (p *Planner) GeneratePlan(ctx context.Context, projectID, userID string, cmd GeneratePlanCommand, rawBody []byte) (PlanResponse, error) {
	start := p.now()

	project, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PlanResponse{}, newError(KindNotFound, "Project not found")
		}
		return PlanResponse{}, fmt.Errorf("fetch project: %w", err)
	}
	if project.UserID != userID {
		return PlanResponse{}, newError(KindNotFound, "Project not found")
	}

	// Note ids are checked against a fresh fetch, never trusted from
	// the client.
	persisted, err := p.Store.ListProjectNotes(ctx, projectID)
	if err != nil {
		return PlanResponse{}, fmt.Errorf("fetch notes: %w", err)
	}
	known := make(map[string]bool, len(persisted))
	for _, n := range persisted {
		known[n.ID] = true
	}
	for _, ref := range cmd.Notes {
		if !known[ref.ID] {
			verr := newError(KindValidation,
				fmt.Sprintf("Note with ID %s does not belong to this project", ref.ID))
			verr.Status = 400
			p.recordFailure(ctx, projectID, userID, "", "", rawBody, verr, start)
			return PlanResponse{}, verr
		}
	}

	userPrompt := BuildUserPrompt(cmd)

	pendingID := p.recordPending(ctx, projectID, userID, userPrompt, rawBody, start)

	resp, err := p.Chat.SendChat(ctx, ChatRequest{
		SystemMessage: BuildSystemPrompt(),
		UserMessage:   userPrompt,
		Model:         MapModelName(cmd.Model),
		SchemaName:    PlanSchemaName,
		Schema:        PlanResponseSchema(),
	})
	if err != nil {
		err = upstreamError(err)
		p.recordFailure(ctx, projectID, userID, pendingID, userPrompt, rawBody, err, start)
		return PlanResponse{}, err
	}

	var plan PlanResponse
	if uerr := json.Unmarshal(resp.Data, &plan); uerr != nil {
		verr := wrapError(KindValidation, uerr, "AI response validation failed: reply does not decode into a plan")
		verr.Status = 500
		p.recordFailure(ctx, projectID, userID, pendingID, userPrompt, rawBody, verr, start)
		return PlanResponse{}, verr
	}

	if cerr := checkCompleteness(plan, cmd.DurationDays); cerr != nil {
		p.recordFailure(ctx, projectID, userID, pendingID, userPrompt, rawBody, cerr, start)
		return PlanResponse{}, cerr
	}

	p.recordSuccess(ctx, pendingID, resp.Data, start)
	return plan, nil
}

// upstreamError reclassifies client-side validation of the model reply
// as a 500-class failure; the request itself was fine.
func upstreamError(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		out := &Error{
			Kind:    KindValidation,
			Status:  500,
			Message: "AI response validation failed: " + e.Message,
			Details: e.Details,
			cause:   e,
		}
		return out
	}
	return err
}

func checkCompleteness(plan PlanResponse, durationDays int) error {
	if len(plan.Schedule) == 0 {
		e := newError(KindValidation, "Generated plan has no schedule items")
		e.Status = 500
		return e
	}
	if len(plan.Schedule) != durationDays {
		e := newError(KindValidation, fmt.Sprintf(
			"Generated plan has %d days but expected %d days", len(plan.Schedule), durationDays))
		e.Status = 500
		return e
	}
	seen := make(map[int]bool, len(plan.Schedule))
	for _, item := range plan.Schedule {
		seen[item.Day] = true
	}
	for day := 1; day <= durationDays; day++ {
		if !seen[day] {
			e := newError(KindValidation, fmt.Sprintf(
				"Generated plan is missing day %d or has incorrect day numbering", day))
			e.Status = 500
			return e
		}
	}
	return nil
}

// recordPending inserts the pending audit row before the outbound call.
// Failure to write it never fails the request.
func (p *Planner) recordPending(ctx context.Context, projectID, userID, prompt string, rawBody []byte, start time.Time) string {
	entry := domain.AILog{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      userID,
		Prompt:      prompt,
		RequestBody: string(rawBody),
		Status:      domain.AILogPending,
		CreatedOn:   start.UTC().Format(time.RFC3339),
	}
	if _, err := p.Store.InsertAILog(ctx, entry); err != nil {
		p.Logger.Warn().Err(err).Str("project_id", projectID).
			Msg("failed to insert pending ai log")
		return ""
	}
	return entry.ID
}

func (p *Planner) recordSuccess(ctx context.Context, pendingID string, response json.RawMessage, start time.Time) {
	if pendingID == "" {
		return
	}
	code := 200
	dur := p.now().Sub(start).Milliseconds()
	if err := p.Store.UpdateAILog(ctx, pendingID, domain.AILogSuccess, string(response), &code, &dur); err != nil {
		p.Logger.Warn().Err(err).Str("log_id", pendingID).
			Msg("failed to record ai log success")
	}
}

// recordFailure updates the pending row, or inserts a fresh failure row
// when the pipeline failed before one existed.
func (p *Planner) recordFailure(ctx context.Context, projectID, userID, pendingID, prompt string, rawBody []byte, cause error, start time.Time) {
	code := HTTPStatus(cause)
	dur := p.now().Sub(start).Milliseconds()
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})

	var err error
	if pendingID != "" {
		err = p.Store.UpdateAILog(ctx, pendingID, domain.AILogFailure, string(payload), &code, &dur)
	} else {
		_, err = p.Store.InsertAILog(ctx, domain.AILog{
			ID:           uuid.NewString(),
			ProjectID:    projectID,
			UserID:       userID,
			Prompt:       prompt,
			RequestBody:  string(rawBody),
			Response:     string(payload),
			ResponseCode: &code,
			Status:       domain.AILogFailure,
			DurationMs:   &dur,
			CreatedOn:    start.UTC().Format(time.RFC3339),
		})
	}
	if err != nil {
		p.Logger.Warn().Err(err).Str("project_id", projectID).
			Msg("failed to record ai log failure")
	}
}
