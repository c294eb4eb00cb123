package domain

// UserData is the signed-in principal as reported by GET /api/users/me.
// It exists only while the backend session cookie is valid.
type UserData struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username,omitempty"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Role      *string `json:"role,omitempty"`
}

type ProjectData struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IconName    string `json:"iconName,omitempty"`
	IsFavorite  bool   `json:"isFavorite"`
	TaskCount   int    `json:"taskCount"`
	OwnerID     int64  `json:"ownerId"`
	OwnerName   string `json:"ownerName,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ProjectPayload is the write shape for POST /api/projects.
type ProjectPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IconName    string `json:"iconName,omitempty"`
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusCancelled  TaskStatus = "CANCELLED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	DueDate      *string    `json:"dueDate,omitempty"`
	ProjectID    *int64     `json:"projectId,omitempty"`
	ProjectName  string     `json:"projectName,omitempty"`
	AssigneeID   *int64     `json:"assigneeId,omitempty"`
	AssigneeName string     `json:"assigneeName,omitempty"`
	CreatedAt    string     `json:"createdAt"`
	UpdatedAt    string     `json:"updatedAt"`
}

// TaskPayload is the full write shape the backend requires on create and
// update. Partial patches are not part of the contract; every write carries
// the complete record.
type TaskPayload struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *string    `json:"dueDate"`
	ProjectID   *int64     `json:"projectId"`
	AssigneeID  *int64     `json:"assigneeId"`
}

// PayloadFromTask builds the full update payload for an existing task.
func PayloadFromTask(t Task) TaskPayload {
	return TaskPayload{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate,
		ProjectID:   t.ProjectID,
		AssigneeID:  t.AssigneeID,
	}
}
