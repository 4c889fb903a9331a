package server

import (
	"atlas/internal/domain"
	"atlas/internal/engine"
)

// profile wraps the caller's profile; service principals carry no row of
// their own but act with the privileged role.
type profile struct {
	domain.Profile
	Service bool
}

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateUserRequest struct {
	Email        string   `json:"email" format:"email"`
	Password     string   `json:"password"`
	Username     string   `json:"username,omitempty"`
	FullName     string   `json:"full_name"`
	Role         string   `json:"role,omitempty" enum:"Usuario,Coordinador,Responsable,Administrador"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Supervised   []string `json:"supervised,omitempty"`
}

type UpdateUserRequest struct {
	FullName     *string  `json:"full_name,omitempty"`
	Role         *string  `json:"role,omitempty" enum:"Usuario,Coordinador,Responsable,Administrador"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Supervised   []string `json:"supervised,omitempty"`
}

type DepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateTaskRequest uses the field names task clients send.
type CreateTaskRequest struct {
	Titulo       string  `json:"titulo"`
	Descripcion  string  `json:"descripcion,omitempty"`
	Prioridad    string  `json:"prioridad,omitempty" enum:"Baja,Media,Alta,Urgente"`
	AssignedTo   string  `json:"assigned_to,omitempty"`
	AssignedText string  `json:"assigned_text,omitempty"`
	Departamento *string `json:"departamento,omitempty"`
	Privada      bool    `json:"privada,omitempty"`
}

type UpdateTaskRequest struct {
	Titulo      *string `json:"titulo,omitempty"`
	Descripcion *string `json:"descripcion,omitempty"`
	Prioridad   *string `json:"prioridad,omitempty" enum:"Baja,Media,Alta,Urgente"`
	Estado      *string `json:"estado,omitempty" enum:"Sin iniciar,En progreso,En espera,Finalizada"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Privada     *bool   `json:"privada,omitempty"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
}

// Response payloads

type SessionResponse struct {
	Token   string         `json:"token"`
	Profile domain.Profile `json:"profile"`
}

type MeResponse struct {
	Profile            domain.Profile `json:"profile"`
	ManagementSections []string       `json:"management_sections"`
	UnreadCount        int            `json:"unread_count"`
}

type taskList struct {
	Items []domain.Task `json:"items"`
}

type userList struct {
	Items []domain.Profile `json:"items"`
}

type departmentList struct {
	Items []domain.Department `json:"items"`
}

type notificationList struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

type timelineResponse struct {
	Items []engine.TimelineEntry `json:"items"`
}
