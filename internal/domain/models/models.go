package models

import "time"

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email" validate:"required,email,max=255"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Category    string `json:"category" validate:"omitempty,max=50"`
	Priority    string `json:"priority" validate:"omitempty,max=20"`
	DueDate     string `json:"due_date" validate:"omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=500"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	Priority    *string `json:"priority" validate:"omitempty,max=20"`
	DueDate     *string `json:"due_date"`
}

type SetCompletionRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// TaskFilter ограничивает выборку задач владельца.
// Completed == nil означает выборку без фильтра по флагу завершения.
type TaskFilter struct {
	Completed *bool
	Offset    int
	Limit     int
}

// TaskPatch описывает частичное обновление задачи: nil-поля не трогаются.
// SetDueDate отличает "очистить срок" (true, DueDate == nil) от "не менять".
type TaskPatch struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *string
	DueDate     *time.Time
	SetDueDate  bool
}
