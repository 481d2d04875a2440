package domain

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedOn    string `json:"created_on" format:"date-time"`
}

type Project struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	DurationDays int     `json:"duration_days"`
	PlannedDate  *string `json:"planned_date,omitempty"`
	CreatedOn    string  `json:"created_on" format:"date-time"`
}

type Note struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Content   string   `json:"content"`
	Priority  int      `json:"priority"`
	PlaceTags []string `json:"place_tags,omitempty"`
	UpdatedOn string   `json:"updated_on" format:"date-time"`
}

// AILog statuses. A log row is created as pending before the outbound
// LLM call and receives exactly one terminal update afterwards.
const (
	AILogPending = "pending"
	AILogSuccess = "success"
	AILogFailure = "failure"
)

type AILog struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	UserID       string `json:"user_id"`
	Prompt       string `json:"prompt"`
	RequestBody  string `json:"request_body"`
	Response     string `json:"response"`
	ResponseCode *int   `json:"response_code,omitempty"`
	Status       string `json:"status" enum:"pending,success,failure"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	CreatedOn    string `json:"created_on" format:"date-time"`
	Version      int    `json:"version"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedOn string `json:"created_on" format:"date-time"`
}
