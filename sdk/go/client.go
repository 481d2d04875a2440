package triplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Tripline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api",
		Timeout:  10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Project represents a trip.
type Project struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DurationDays int     `json:"duration_days"`
	PlannedDate  *string `json:"planned_date,omitempty"`
	CreatedOn    string  `json:"created_on"`
}

// Note represents a prioritized trip note.
type Note struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Content   string   `json:"content"`
	Priority  int      `json:"priority"`
	PlaceTags []string `json:"place_tags"`
	UpdatedOn string   `json:"updated_on"`
}

// ScheduleItem is one day of a generated plan.
type ScheduleItem struct {
	Day        int      `json:"day"`
	Activities []string `json:"activities"`
}

// Plan is a generated travel plan.
type Plan struct {
	Schedule  []ScheduleItem `json:"schedule"`
	Version   int            `json:"version,omitempty"`
	CreatedOn string         `json:"createdOn,omitempty"`
}

// Meta carries pagination totals.
type Meta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates with email and password and stores the bearer
// token on the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Me returns the authenticated principal.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateProject creates a trip.
func (c *Client) CreateProject(ctx context.Context, name string, durationDays int, plannedDate string) (Project, error) {
	body := map[string]any{
		"name":          name,
		"duration_days": durationDays,
	}
	if plannedDate != "" {
		body["planned_date"] = plannedDate
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// ListProjects returns a page of trips.
func (c *Client) ListProjects(ctx context.Context, page, size int) ([]Project, Meta, error) {
	endpoint := "projects"
	if page > 0 {
		endpoint = fmt.Sprintf("%s?page=%d&size=%d", endpoint, page, size)
	}
	var resp struct {
		Data []Project `json:"data"`
		Meta Meta      `json:"meta"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Data, resp.Meta, err
}

// GetProject fetches a trip by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateProject applies a partial update. Nil fields are left unchanged.
func (c *Client) UpdateProject(ctx context.Context, id string, name *string, durationDays *int, plannedDate *string) (Project, error) {
	body := map[string]any{}
	if name != nil {
		body["name"] = *name
	}
	if durationDays != nil {
		body["duration_days"] = *durationDays
	}
	if plannedDate != nil {
		body["planned_date"] = *plannedDate
	}
	var resp Project
	err := c.do(ctx, http.MethodPut, "projects/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// DeleteProject deletes a trip and everything under it.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(id), nil, nil)
}

// CreateNote adds a note to a trip.
func (c *Client) CreateNote(ctx context.Context, projectID, content string, priority int, placeTags []string) (Note, error) {
	body := map[string]any{
		"content":  content,
		"priority": priority,
	}
	if len(placeTags) > 0 {
		body["place_tags"] = placeTags
	}
	var resp Note
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "notes"), body, &resp)
	return resp, err
}

// ListNotes returns a page of notes. priority 0 and an empty placeTag
// disable the respective filters.
func (c *Client) ListNotes(ctx context.Context, projectID string, page, size, priority int, placeTag string) ([]Note, Meta, error) {
	endpoint := c.projectPath(projectID, "notes")
	params := url.Values{}
	if page > 0 {
		params.Set("page", fmt.Sprint(page))
		params.Set("size", fmt.Sprint(size))
	}
	if priority > 0 {
		params.Set("priority", fmt.Sprint(priority))
	}
	if placeTag != "" {
		params.Set("place_tag", placeTag)
	}
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	var resp struct {
		Data []Note `json:"data"`
		Meta Meta   `json:"meta"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Data, resp.Meta, err
}

// UpdateNote applies a partial update to a note.
func (c *Client) UpdateNote(ctx context.Context, projectID, noteID string, content *string, priority *int, placeTags []string) (Note, error) {
	body := map[string]any{}
	if content != nil {
		body["content"] = *content
	}
	if priority != nil {
		body["priority"] = *priority
	}
	if placeTags != nil {
		body["place_tags"] = placeTags
	}
	var resp Note
	endpoint := c.projectPath(projectID, "notes/"+url.PathEscape(noteID))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// DeleteNote removes a note from a trip.
func (c *Client) DeleteNote(ctx context.Context, projectID, noteID string) error {
	endpoint := c.projectPath(projectID, "notes/"+url.PathEscape(noteID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// NoteRef identifies a note in a plan generation request. Content,
// priority and tags must match the stored note's current state.
type NoteRef struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Priority  int      `json:"priority"`
	PlaceTags []string `json:"place_tags,omitempty"`
}

// GeneratePlan asks the server to generate a plan from the given notes.
func (c *Client) GeneratePlan(ctx context.Context, projectID, model, projectName string, durationDays int, notes []NoteRef, categories []string) (Plan, error) {
	body := map[string]any{
		"model":         model,
		"project_name":  projectName,
		"duration_days": durationDays,
		"notes":         notes,
	}
	if len(categories) > 0 {
		body["preferences"] = map[string]any{"categories": categories}
	}
	var resp Plan
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "plan"), body, &resp)
	return resp, err
}

// GetPlan returns the latest successfully generated plan.
func (c *Client) GetPlan(ctx context.Context, projectID string) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "plan"), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(projectID, p string) string {
	return fmt.Sprintf("projects/%s/%s", url.PathEscape(projectID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
