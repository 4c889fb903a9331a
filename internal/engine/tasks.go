package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"atlas/internal/domain"
	"atlas/internal/repo"
)

// History field names for audit entries.
const (
	fieldCreated    = "creacion"
	fieldAssignment = "asignacion"
	fieldStatus     = "estado"
	fieldPriority   = "prioridad"
	fieldTitle      = "titulo"
	fieldDesc       = "descripcion"
)

// assigneeScanLimit bounds the full-name fallback lookup.
const assigneeScanLimit = 500

// CreateTaskInput is a new task request. AssignedTo may be a profile id,
// a username, an email, or a full name; whatever cannot be resolved is
// kept verbatim as free text.
type CreateTaskInput struct {
	Title        string
	Description  string
	Priority     domain.Priority
	AssignedTo   string
	AssignedText string
	DepartmentID *string
	Private      bool
}

// CreateTask inserts the task, then appends the creation audit entries and
// notifies the assignee. The side effects are best-effort: once the task row
// is committed a failed history line or notification is logged, not returned.
func (e *Engine) CreateTask(ctx context.Context, creator domain.Profile, in CreateTaskInput) (domain.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.Task{}, &ValidationError{Field: "titulo", Msg: "required"}
	}
	if in.Priority == "" {
		in.Priority = e.defaultPriority()
	}
	if !domain.ValidPriority(in.Priority) {
		return domain.Task{}, &ValidationError{Field: "prioridad", Msg: "unknown priority " + string(in.Priority)}
	}
	if in.DepartmentID != nil && *in.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, *in.DepartmentID); err != nil {
			return domain.Task{}, &ValidationError{Field: "departamento", Msg: "unknown department"}
		}
	}

	assigneeID, assigneeText, assigneeName := e.resolveAssignee(ctx, in.AssignedTo, in.AssignedText)

	now := e.nowRFC3339()
	t := domain.Task{
		ID:           uuid.New().String(),
		Title:        in.Title,
		Description:  in.Description,
		CreatorID:    creator.ID,
		AssigneeID:   assigneeID,
		AssigneeText: assigneeText,
		Priority:     in.Priority,
		Status:       domain.StatusSinIniciar,
		IsPrivate:    in.Private,
		DepartmentID: in.DepartmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.DepartmentID == nil {
		t.DepartmentID = creator.DepartmentID
	}

	if err := e.Repo.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}

	createdComment := creator.FullName + " creó la tarea: " + t.Title
	e.appendTaskEvent(ctx, domain.HistoryEntry{
		TaskID:   t.ID,
		ActorID:  creator.ID,
		Field:    fieldCreated,
		NewValue: "Tarea creada",
		Comment:  &createdComment,
	})
	if assigneeName != "" {
		assignedComment := creator.FullName + " asignó la tarea a " + assigneeName
		e.appendTaskEvent(ctx, domain.HistoryEntry{
			TaskID:   t.ID,
			ActorID:  creator.ID,
			Field:    fieldAssignment,
			NewValue: assigneeName,
			Comment:  &assignedComment,
		})
	}
	if t.AssigneeID != nil && *t.AssigneeID != creator.ID {
		e.notify(ctx, *t.AssigneeID, "task_assigned",
			creator.FullName+" te ha asignado la tarea: "+t.Title)
	}
	return t, nil
}

// appendTaskEvent writes one history entry for an already committed change.
// Failure is logged and dropped; a missing audit line never undoes the
// operation it records.
func (e *Engine) appendTaskEvent(ctx context.Context, entry domain.HistoryEntry) {
	written, err := e.History.AppendStandalone(ctx, entry)
	if err != nil {
		e.Log.Warn("history append failed", "task", entry.TaskID, "field", entry.Field, "err", err)
		return
	}
	e.Stream.Publish(written)
}

func (e *Engine) defaultPriority() domain.Priority {
	if p := domain.Priority(e.Config.Defaults.Priority); domain.ValidPriority(p) {
		return p
	}
	return domain.PriorityMedia
}

// resolveAssignee tries id, then username, then email, then a bounded scan
// over full names. An unresolvable reference becomes free text instead of
// failing the request. The third return is the display name for audit lines.
func (e *Engine) resolveAssignee(ctx context.Context, ref, text string) (*string, *string, string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if text = strings.TrimSpace(text); text != "" {
			return nil, &text, text
		}
		return nil, nil, ""
	}
	if p, err := e.Repo.GetProfile(ctx, ref); err == nil {
		return &p.ID, nil, p.FullName
	}
	if p, err := e.Repo.GetProfileByUsername(ctx, ref); err == nil {
		return &p.ID, nil, p.FullName
	}
	if p, err := e.Repo.GetProfileByEmail(ctx, ref); err == nil {
		return &p.ID, nil, p.FullName
	}
	if all, err := e.Repo.ListProfiles(ctx); err == nil {
		for i, p := range all {
			if i >= assigneeScanLimit {
				break
			}
			if strings.EqualFold(p.FullName, ref) {
				return &p.ID, nil, p.FullName
			}
		}
	}
	return nil, &ref, ref
}

// assigneeDisplay names the current assignee for audit lines.
func (e *Engine) assigneeDisplay(ctx context.Context, t domain.Task) string {
	if t.AssigneeID != nil {
		if p, err := e.Repo.GetProfile(ctx, *t.AssigneeID); err == nil {
			return p.FullName
		}
		return *t.AssigneeID
	}
	if t.AssigneeText != nil {
		return *t.AssigneeText
	}
	return ""
}

// TaskFilters narrows VisibleTasks. Status accepts the open-tasks sentinel.
type TaskFilters struct {
	Status   string
	Priority string
	Assignee string
	Query    string
}

// VisibleTasks lists the tasks the viewer may see, filtered.
func (e *Engine) VisibleTasks(ctx context.Context, viewer domain.Profile, f TaskFilters) ([]domain.Task, error) {
	if f.Status != "" && f.Status != domain.StatusFilterOpen && !domain.ValidStatus(domain.Status(f.Status)) {
		return nil, &ValidationError{Field: "estado", Msg: "unknown status " + f.Status}
	}
	if f.Priority != "" && !domain.ValidPriority(domain.Priority(f.Priority)) {
		return nil, &ValidationError{Field: "prioridad", Msg: "unknown priority " + f.Priority}
	}
	return e.Repo.VisibleTasks(ctx, repo.TaskFilter{
		ViewerID:   viewer.ID,
		Supervised: viewer.Supervised,
		Status:     f.Status,
		Priority:   f.Priority,
		Assignee:   f.Assignee,
		Query:      f.Query,
	})
}

// GetTask loads one task after checking the viewer may see it.
func (e *Engine) GetTask(ctx context.Context, viewer domain.Profile, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !canView(viewer, t) {
		// Invisible tasks do not exist as far as the viewer can tell.
		return domain.Task{}, repo.ErrNotFound
	}
	return t, nil
}

func canView(viewer domain.Profile, t domain.Task) bool {
	if t.CreatorID == viewer.ID {
		return true
	}
	if t.IsPrivate {
		return false
	}
	if t.AssigneeID != nil && *t.AssigneeID == viewer.ID {
		return true
	}
	return slices.Contains(viewer.Supervised, t.CreatorID)
}

// canEdit extends canView with the administrator bypass for public tasks.
// Someone else's private task stays off limits even to administrators; they
// cannot see it, so they cannot touch it.
func canEdit(viewer domain.Profile, t domain.Task) bool {
	if canView(viewer, t) {
		return true
	}
	return !t.IsPrivate && viewer.Role == domain.RoleAdministrador
}

// UpdateTaskInput patches a task. Nil fields are left untouched.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *domain.Priority
	Status      *domain.Status
	AssignedTo  *string
	Private     *bool
}

// UpdateTask applies the patch, writing one audit entry per changed field
// in the same transaction as the update.
func (e *Engine) UpdateTask(ctx context.Context, actor domain.Profile, id string, in UpdateTaskInput) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !canEdit(actor, t) {
		return domain.Task{}, repo.ErrNotFound
	}

	type change struct {
		field    string
		old, new string
	}
	var changes []change

	if in.Title != nil && *in.Title != t.Title {
		if strings.TrimSpace(*in.Title) == "" {
			return domain.Task{}, &ValidationError{Field: "titulo", Msg: "required"}
		}
		changes = append(changes, change{fieldTitle, t.Title, *in.Title})
		t.Title = *in.Title
	}
	if in.Description != nil && *in.Description != t.Description {
		changes = append(changes, change{fieldDesc, t.Description, *in.Description})
		t.Description = *in.Description
	}
	if in.Priority != nil && *in.Priority != t.Priority {
		if !domain.ValidPriority(*in.Priority) {
			return domain.Task{}, &ValidationError{Field: "prioridad", Msg: "unknown priority " + string(*in.Priority)}
		}
		changes = append(changes, change{fieldPriority, string(t.Priority), string(*in.Priority)})
		t.Priority = *in.Priority
	}
	if in.Status != nil && *in.Status != t.Status {
		if !domain.ValidStatus(*in.Status) {
			return domain.Task{}, &ValidationError{Field: "estado", Msg: "unknown status " + string(*in.Status)}
		}
		changes = append(changes, change{fieldStatus, string(t.Status), string(*in.Status)})
		t.Status = *in.Status
	}
	if in.AssignedTo != nil {
		oldName := e.assigneeDisplay(ctx, t)
		var newName string
		t.AssigneeID, t.AssigneeText, newName = e.resolveAssignee(ctx, *in.AssignedTo, "")
		if newName != oldName {
			changes = append(changes, change{fieldAssignment, oldName, newName})
		}
	}
	if in.Private != nil {
		t.IsPrivate = *in.Private
	}

	if len(changes) == 0 && in.Private == nil {
		return t, nil
	}
	t.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTaskTx(tx, t); err != nil {
		return domain.Task{}, err
	}
	var published []domain.HistoryEntry
	for _, c := range changes {
		old := c.old
		entry, err := e.History.Append(tx, domain.HistoryEntry{
			TaskID:   t.ID,
			ActorID:  actor.ID,
			Field:    c.field,
			OldValue: &old,
			NewValue: c.new,
		})
		if err != nil {
			return domain.Task{}, err
		}
		published = append(published, entry)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}

	for _, entry := range published {
		e.Stream.Publish(entry)
	}
	if t.Status == domain.StatusFinalizada && t.CreatorID != actor.ID {
		e.notify(ctx, t.CreatorID, "task_finished",
			actor.FullName+" ha finalizado la tarea: "+t.Title)
	}
	return t, nil
}

// DeleteTask removes a task; only its creator or an administrator may.
func (e *Engine) DeleteTask(ctx context.Context, actor domain.Profile, id string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t.CreatorID != actor.ID {
		if !canEdit(actor, t) {
			return repo.ErrNotFound
		}
		if actor.Role != domain.RoleAdministrador {
			return &ValidationError{Field: "id", Msg: "only the creator can delete a task"}
		}
	}
	return e.Repo.DeleteTask(ctx, id)
}

// AddChatMessage appends a chat entry to the task timeline and notifies
// the other party.
func (e *Engine) AddChatMessage(ctx context.Context, actor domain.Profile, taskID, message string) (domain.HistoryEntry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.HistoryEntry{}, &ValidationError{Field: "message", Msg: "required"}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if !canView(actor, t) {
		return domain.HistoryEntry{}, repo.ErrNotFound
	}
	entry, err := e.History.AppendStandalone(ctx, domain.HistoryEntry{
		TaskID:   taskID,
		ActorID:  actor.ID,
		Field:    domain.FieldChatMessage,
		NewValue: message,
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	e.Stream.Publish(entry)

	recipient := t.CreatorID
	if actor.ID == t.CreatorID && t.AssigneeID != nil {
		recipient = *t.AssigneeID
	}
	if recipient != actor.ID {
		e.notify(ctx, recipient, "chat_message",
			actor.FullName+" ha comentado en: "+t.Title)
	}
	return entry, nil
}

func (e *Engine) notify(ctx context.Context, recipientID, typ, message string) {
	n := domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        typ,
		Message:     message,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertNotification(ctx, n); err != nil {
		e.Log.Warn("notification failed", "recipient", recipientID, "type", typ, "err", err)
	}
}
