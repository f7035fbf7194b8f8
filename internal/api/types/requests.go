package types

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProjectCreateRequest struct {
	Title       string                 `json:"title" validate:"required"`
	Description string                 `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
}

type ProjectUpdateRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
}

type MemberAddRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Role   string `json:"role" validate:"required,oneof=editor viewer"`
}

type SprintCreateRequest struct {
	Name     string  `json:"name" validate:"required"`
	StartsAt *string `json:"starts_at"`
	EndsAt   *string `json:"ends_at"`
}

type TaskUpdateRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	// Empty string clears the assignment.
	AssigneeID *string `json:"assignee_id"`
	SprintID   *string `json:"sprint_id"`
}

type RoomCreateRequest struct {
	Name string `json:"name" validate:"required"`
}

type MessagePostRequest struct {
	Body string `json:"body" validate:"required"`
}
