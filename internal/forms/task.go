// Package forms holds the client-side pre-submit checks. A payload that
// fails here never reaches the network; the errors land in the same
// field-keyed slots the backend's validation responses use.
package forms

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taskdeck/internal/domain"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
)

// FieldErrors maps a field name to a display message.
type FieldErrors map[string]string

// ValidationError carries FieldErrors across an error return.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ValidateTask checks a task payload before dispatch. existing is the
// current server-side record when editing, nil when creating; a due date in
// the past is allowed only when it is unchanged from that record. now fixes
// "today" so the rule is testable.
func ValidateTask(p domain.TaskPayload, existing *domain.Task, now time.Time) FieldErrors {
	errs := FieldErrors{}

	// Limits are in characters, not bytes; titles are routinely non-ASCII.
	title := strings.TrimSpace(p.Title)
	if title == "" {
		errs["title"] = "title must not be empty"
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", MaxTitleLength)
	}

	if p.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Description)) > MaxDescriptionLength {
		errs["description"] = fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength)
	}

	if !p.Status.Valid() {
		errs["status"] = "status must be one of TODO, IN_PROGRESS, DONE, CANCELLED"
	}

	if p.DueDate != nil && *p.DueDate != "" {
		validateDueDate(*p.DueDate, existing, now, errs)
	}

	if p.ProjectID == nil {
		errs["projectId"] = "task has no project reference"
	}

	return errs
}

func validateDueDate(due string, existing *domain.Task, now time.Time, errs FieldErrors) {
	d, err := time.Parse("2006-01-02", due)
	if err != nil {
		errs["dueDate"] = "due date must be YYYY-MM-DD"
		return
	}
	currentYear := now.UTC().Year()
	if d.Year() < currentYear-150 || d.Year() > currentYear+150 {
		errs["dueDate"] = fmt.Sprintf("year must be between %d and %d", currentYear-150, currentYear+150)
		return
	}
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		// Unchanged past dates on an existing task stay valid.
		if existing != nil && existing.DueDate != nil && *existing.DueDate == due {
			return
		}
		errs["dueDate"] = "due date must not be in the past"
	}
}

// ValidateProject checks a project payload before dispatch.
func ValidateProject(p domain.ProjectPayload) FieldErrors {
	errs := FieldErrors{}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		errs["name"] = "name must not be empty"
	} else if utf8.RuneCountInString(name) > MaxTitleLength {
		errs["name"] = fmt.Sprintf("name must be at most %d characters", MaxTitleLength)
	}
	return errs
}
