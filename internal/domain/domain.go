package domain

// Role is the access level of a profile. Values match the organization's
// vocabulary and are stored verbatim.
type Role string

const (
	RoleUsuario       Role = "Usuario"
	RoleCoordinador   Role = "Coordinador"
	RoleResponsable   Role = "Responsable"
	RoleAdministrador Role = "Administrador"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUsuario, RoleCoordinador, RoleResponsable, RoleAdministrador:
		return true
	}
	return false
}

type Priority string

const (
	PriorityBaja    Priority = "Baja"
	PriorityMedia   Priority = "Media"
	PriorityAlta    Priority = "Alta"
	PriorityUrgente Priority = "Urgente"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityBaja, PriorityMedia, PriorityAlta, PriorityUrgente:
		return true
	}
	return false
}

type Status string

const (
	StatusSinIniciar Status = "Sin iniciar"
	StatusEnProgreso Status = "En progreso"
	StatusEnEspera   Status = "En espera"
	StatusFinalizada Status = "Finalizada"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusSinIniciar, StatusEnProgreso, StatusEnEspera, StatusFinalizada:
		return true
	}
	return false
}

// StatusFilterOpen is the sentinel status filter that matches every task
// except finished ones.
const StatusFilterOpen = "OPEN_TASKS"

// FieldChatMessage marks a history entry as a chat message rather than a
// field-change audit line.
const FieldChatMessage = "chat_message"

// Identity is the authentication record behind a profile. The credential
// hash never leaves the identity store.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Profile is the application-facing account row, keyed by the identity id.
type Profile struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	FullName     string   `json:"full_name"`
	Role         Role     `json:"role" enum:"Usuario,Coordinador,Responsable,Administrador"`
	Email        string   `json:"email"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Supervised   []string `json:"supervised,omitempty"`
	LastActivity string   `json:"last_activity" format:"date-time"`
}

type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	CreatorID    string   `json:"creator_id"`
	AssigneeID   *string  `json:"assignee_id,omitempty"`
	AssigneeText *string  `json:"assignee_text,omitempty"`
	Priority     Priority `json:"priority" enum:"Baja,Media,Alta,Urgente"`
	Status       Status   `json:"status" enum:"Sin iniciar,En progreso,En espera,Finalizada"`
	IsPrivate    bool     `json:"is_private"`
	DepartmentID *string  `json:"department_id,omitempty"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
}

// HistoryEntry is one append-only line in a task's timeline: either a
// field-change audit record or, when Field is FieldChatMessage, a chat
// message. Entries are never mutated or deleted.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	TaskID    string  `json:"task_id"`
	ActorID   string  `json:"actor_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  string  `json:"new_value"`
	Comment   *string `json:"comment,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// IsChat reports whether the entry renders as a chat bubble.
func (h HistoryEntry) IsChat() bool { return h.Field == FieldChatMessage }

type Notification struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// ServiceKey authenticates server-side callers (provisioning jobs) that
// hold the privileged tier. Only the hash is stored.
type ServiceKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
