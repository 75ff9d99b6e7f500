package reminder

import (
	"strings"
	"time"
)

// wholeDay is the span of an event running from 00:00 to 23:59.
const wholeDay = 23*time.Hour + 59*time.Minute

// Priority is the urgency of a reminder
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns a string representation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PriorityClassifier rates events by keywords in their title, description and
// category
type PriorityClassifier struct {
	highKeywords     []string
	criticalKeywords []string
	workCategories   []string
}

// NewPriorityClassifier creates a classifier with the default keyword lists
func NewPriorityClassifier() *PriorityClassifier {
	return &PriorityClassifier{
		highKeywords: []string{
			"meeting", "interview", "appointment", "deadline", "due",
			"presentation", "conference", "call", "sync", "standup",
			"1:1", "one-on-one", "review", "demo", "launch",
		},
		criticalKeywords: []string{
			"urgent", "asap", "emergency", "critical", "important",
			"deadline today", "overdue", "final", "last chance",
		},
		workCategories: []string{
			"work", "office", "company", "business", "client",
		},
	}
}

// Classify determines the priority of a reminder
func (pc *PriorityClassifier) Classify(r Reminder) Priority {
	text := strings.ToLower(r.Record.Title + " " + r.Record.Description)

	priority := PriorityNormal
	switch {
	case containsAny(text, pc.criticalKeywords):
		priority = PriorityCritical
	case containsAny(text, pc.highKeywords):
		priority = PriorityHigh
	}

	category := strings.ToLower(r.Record.Category)
	if priority < PriorityHigh && category != "" && containsAny(category, pc.workCategories) {
		priority = PriorityHigh
	}

	// Whole-day placeholders rarely need an interruption
	if r.End.Sub(r.Start) >= wholeDay && priority > PriorityLow {
		priority = PriorityLow
	}

	return priority
}

// AddHighKeyword adds a custom high priority keyword
func (pc *PriorityClassifier) AddHighKeyword(keyword string) {
	pc.highKeywords = append(pc.highKeywords, strings.ToLower(keyword))
}

// AddCriticalKeyword adds a custom critical priority keyword
func (pc *PriorityClassifier) AddCriticalKeyword(keyword string) {
	pc.criticalKeywords = append(pc.criticalKeywords, strings.ToLower(keyword))
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
