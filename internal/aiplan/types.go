// Package aiplan generates day-by-day travel itineraries through an
// OpenAI-compatible chat-completions API with schema-constrained output.
package aiplan

// Note priorities. Lower numbers are more important.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// AllowedModels are the user-facing model names accepted by the plan
// endpoint. All of them currently map to the one backend model that
// supports strict json_schema output.
var AllowedModels = []string{
	"gpt-4",
	"gpt-4o-mini",
	"gpt-5",
	"claude-3-opus",
	"claude-3.5-sonnet",
	"openai/gpt-oss-20b",
}

const backendModel = "openai/gpt-oss-20b"

// MapModelName translates a user-facing model name to the backend
// identifier sent upstream.
func MapModelName(requested string) string {
	return backendModel
}

type NoteRef struct {
	ID        string   `json:"id" format:"uuid" doc:"Persisted note id"`
	Content   string   `json:"content" minLength:"1"`
	Priority  int      `json:"priority" minimum:"1" maximum:"3" doc:"1=high, 2=medium, 3=low"`
	PlaceTags []string `json:"place_tags,omitempty"`
}

type Preferences struct {
	Categories []string `json:"categories" minItems:"1"`
}

// GeneratePlanCommand is the request body of the plan endpoint.
type GeneratePlanCommand struct {
	Model        string       `json:"model" enum:"gpt-4,gpt-4o-mini,gpt-5,claude-3-opus,claude-3.5-sonnet,openai/gpt-oss-20b"`
	ProjectName  string       `json:"project_name" minLength:"1" maxLength:"200"`
	DurationDays int          `json:"duration_days" minimum:"1" maximum:"365"`
	Notes        []NoteRef    `json:"notes" minItems:"1" maxItems:"100"`
	Preferences  *Preferences `json:"preferences,omitempty"`
}

type ScheduleItem struct {
	Day        int      `json:"day"`
	Activities []string `json:"activities"`
}

type PlanResponse struct {
	Schedule []ScheduleItem `json:"schedule"`
}
