package aiplan

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are an expert travel planner AI assistant. Your task is to create detailed, personalized travel itineraries based on user notes and preferences.

RESPONSIBILITIES:
- Analyze user notes about places, activities, and attractions
- Prioritize activities based on user-assigned priority levels (1=high, 2=medium, 3=low)
- Create a day-by-day schedule that is logical and feasible
- Consider travel time and geographical proximity when scheduling activities
- Balance the itinerary to avoid overloading any single day
- Include high-priority items early in the trip when possible

OUTPUT REQUIREMENTS:
- CRITICAL: Generate a COMPLETE schedule for ALL days from day 1 to the last day
- DO NOT skip any days - every single day must be included in the response
- Each day should have 3-5 activities
- Activities should be specific and actionable
- Include breaks, meals, and travel time considerations
- Activities should be diverse and well-balanced throughout the trip
- Days must be numbered sequentially: 1, 2, 3, etc.

FORMATTING:
- Be concise but informative in activity descriptions
- Use natural language that is easy to understand
- Ensure the schedule is realistic and achievable`

// BuildSystemPrompt returns the static planner role prompt.
func BuildSystemPrompt() string {
	return systemPrompt
}

func plural(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}

func writeNoteGroup(b *strings.Builder, header string, notes []NoteRef) {
	if len(notes) == 0 {
		return
	}
	b.WriteString(header + ":\n")
	for i, note := range notes {
		tags := ""
		if len(note.PlaceTags) > 0 {
			tags = fmt.Sprintf(" [%s]", strings.Join(note.PlaceTags, ", "))
		}
		fmt.Fprintf(b, "%d. %s%s\n", i+1, note.Content, tags)
	}
	b.WriteString("\n")
}

// BuildUserPrompt renders the trip details into the prompt sent with
// every generation request. Pure function of the command, so the audit
// log can record the exact prompt before the call is made.
func BuildUserPrompt(cmd GeneratePlanCommand) string {
	sorted := make([]NoteRef, len(cmd.Notes))
	copy(sorted, cmd.Notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var high, medium, low []NoteRef
	for _, n := range sorted {
		switch n.Priority {
		case PriorityHigh:
			high = append(high, n)
		case PriorityMedium:
			medium = append(medium, n)
		default:
			low = append(low, n)
		}
	}

	var b strings.Builder
	b.WriteString("Please create a detailed travel itinerary based on the following information:\n\n")
	fmt.Fprintf(&b, "DESTINATION: %s\n", cmd.ProjectName)
	fmt.Fprintf(&b, "TRIP DURATION: %d day%s\n\n", cmd.DurationDays, plural(cmd.DurationDays))

	writeNoteGroup(&b, "HIGH PRIORITY (Must Include)", high)
	writeNoteGroup(&b, "MEDIUM PRIORITY (Should Include)", medium)
	writeNoteGroup(&b, "LOW PRIORITY (Include if time permits)", low)

	if cmd.Preferences != nil && len(cmd.Preferences.Categories) > 0 {
		b.WriteString("USER PREFERENCES:\n")
		fmt.Fprintf(&b, "Interested in: %s\n\n", strings.Join(cmd.Preferences.Categories, ", "))
	}

	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- IMPORTANT: Create a COMPLETE day-by-day itinerary for ALL %d day%s\n", cmd.DurationDays, plural(cmd.DurationDays))
	fmt.Fprintf(&b, "- You MUST include every single day from Day 1 to Day %d\n", cmd.DurationDays)
	fmt.Fprintf(&b, "- DO NOT skip any days - the response must contain exactly %d days\n", cmd.DurationDays)
	b.WriteString("- Each day should have 3-5 activities\n")
	b.WriteString("- Prioritize high-priority items and include them early in the schedule\n")
	b.WriteString("- Ensure activities are geographically logical\n")
	b.WriteString("- Include practical activities like meals, breaks, and travel time\n")
	b.WriteString("- Make the schedule realistic and enjoyable\n")

	return b.String()
}
