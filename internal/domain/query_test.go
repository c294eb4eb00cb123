package domain

import (
	"testing"
)

func strptr(s string) *string { return &s }

func sampleTasks() []Task {
	return []Task{
		{ID: 1, Title: "Alpha", Status: StatusTodo, DueDate: strptr("2026-09-10"), CreatedAt: "2026-09-01T10:00:00Z", UpdatedAt: "2026-09-01T10:00:00Z"},
		{ID: 2, Title: "bravo", Status: StatusInProgress, Description: strptr("urgent follow-up"), CreatedAt: "2026-09-01T11:00:00Z", UpdatedAt: "2026-09-02T09:00:00Z"},
		{ID: 3, Title: "Charlie", Status: StatusDone, DueDate: strptr("2026-09-05"), CreatedAt: "2026-09-01T12:00:00Z", UpdatedAt: "2026-09-01T12:00:00Z"},
		{ID: 4, Title: "delta", Status: StatusTodo, DueDate: strptr("2026-09-03"), CreatedAt: "2026-09-01T13:00:00Z", UpdatedAt: "2026-09-03T08:00:00Z"},
	}
}

func ids(tasks []Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFilterTasksViews(t *testing.T) {
	open := FilterTasks(sampleTasks(), TaskFilters{View: ViewUncompleted})
	for _, task := range open {
		if task.Status == StatusDone {
			t.Fatalf("done task %d in open view", task.ID)
		}
	}
	if len(open) != 3 {
		t.Fatalf("open view = %v", ids(open))
	}

	done := FilterTasks(sampleTasks(), TaskFilters{View: ViewCompleted})
	if len(done) != 1 || done[0].ID != 3 {
		t.Fatalf("completed view = %v", ids(done))
	}
}

func TestFilterTasksStatusOnlyInOpenView(t *testing.T) {
	got := FilterTasks(sampleTasks(), TaskFilters{View: ViewUncompleted, Status: StatusInProgress})
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("status filter = %v", ids(got))
	}
}

func TestFilterTasksSearchTitleAndDescription(t *testing.T) {
	byTitle := FilterTasks(sampleTasks(), TaskFilters{View: ViewUncompleted, Search: "ALPHA"})
	if len(byTitle) != 1 || byTitle[0].ID != 1 {
		t.Fatalf("title search = %v", ids(byTitle))
	}
	byDesc := FilterTasks(sampleTasks(), TaskFilters{View: ViewUncompleted, Search: "urgent"})
	if len(byDesc) != 1 || byDesc[0].ID != 2 {
		t.Fatalf("description search = %v", ids(byDesc))
	}
}

func TestSortTasksOrders(t *testing.T) {
	tasks := sampleTasks()

	newest := ids(SortTasks(tasks, SortNewest))
	if newest[0] != 4 || newest[1] != 2 {
		t.Fatalf("newest = %v", newest)
	}

	oldest := ids(SortTasks(tasks, SortOldest))
	if oldest[0] != 1 {
		t.Fatalf("oldest = %v", oldest)
	}

	titleAsc := ids(SortTasks(tasks, SortTitleAsc))
	want := []int64{1, 2, 3, 4}
	for i := range want {
		if titleAsc[i] != want[i] {
			t.Fatalf("titleAsc = %v", titleAsc)
		}
	}
}

func TestSortTasksDueDateNilLast(t *testing.T) {
	tasks := sampleTasks()

	asc := ids(SortTasks(tasks, SortDueDateAsc))
	if asc[len(asc)-1] != 2 {
		t.Fatalf("dueDateAsc = %v; undated task must sort last", asc)
	}
	if asc[0] != 4 {
		t.Fatalf("dueDateAsc = %v", asc)
	}

	desc := ids(SortTasks(tasks, SortDueDateDesc))
	if desc[len(desc)-1] != 2 {
		t.Fatalf("dueDateDesc = %v; undated task must sort last", desc)
	}
	if desc[0] != 1 {
		t.Fatalf("dueDateDesc = %v", desc)
	}
}

func TestSortTasksLeavesInputUntouched(t *testing.T) {
	tasks := sampleTasks()
	_ = SortTasks(tasks, SortTitleDesc)
	if tasks[0].ID != 1 {
		t.Fatalf("input mutated: %v", ids(tasks))
	}
}
