package domain

import (
	"sort"
	"strings"
	"time"
)

type ListView string

const (
	ViewUncompleted ListView = "uncompleted"
	ViewCompleted   ListView = "completed"
)

type SortOrder string

const (
	SortNewest      SortOrder = "newest"
	SortOldest      SortOrder = "oldest"
	SortDueDateAsc  SortOrder = "dueDateAsc"
	SortDueDateDesc SortOrder = "dueDateDesc"
	SortTitleAsc    SortOrder = "titleAsc"
	SortTitleDesc   SortOrder = "titleDesc"
)

// TaskFilters narrows a snapshot for display. Status only applies to the
// uncompleted view; the completed view always means status DONE.
type TaskFilters struct {
	View   ListView
	Status TaskStatus
	Search string
}

func FilterTasks(tasks []Task, f TaskFilters) []Task {
	out := make([]Task, 0, len(tasks))
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	for _, t := range tasks {
		if f.View == ViewCompleted {
			if t.Status != StatusDone {
				continue
			}
		} else {
			if t.Status == StatusDone {
				continue
			}
			if f.Status != "" && t.Status != f.Status {
				continue
			}
		}
		if needle != "" {
			inTitle := strings.Contains(strings.ToLower(t.Title), needle)
			inDesc := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
			if !inTitle && !inDesc {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// SortTasks returns a sorted copy; the input slice is left untouched.
func SortTasks(tasks []Task, order SortOrder) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch order {
		case SortOldest:
			return parseStamp(a.CreatedAt).Before(parseStamp(b.CreatedAt))
		case SortDueDateAsc:
			return lessByDueDate(a, b, true)
		case SortDueDateDesc:
			return lessByDueDate(a, b, false)
		case SortTitleAsc:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case SortTitleDesc:
			return strings.ToLower(a.Title) > strings.ToLower(b.Title)
		default: // SortNewest
			return parseStamp(a.UpdatedAt).After(parseStamp(b.UpdatedAt))
		}
	})
	return out
}

// Tasks without a due date always sort last, in both directions.
func lessByDueDate(a, b Task, asc bool) bool {
	if a.DueDate == nil && b.DueDate == nil {
		return false
	}
	if a.DueDate == nil {
		return false
	}
	if b.DueDate == nil {
		return true
	}
	da := parseDate(*a.DueDate)
	db := parseDate(*b.DueDate)
	if asc {
		return da.Before(db)
	}
	return da.After(db)
}

var stampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

func parseStamp(s string) time.Time {
	for _, layout := range stampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}
