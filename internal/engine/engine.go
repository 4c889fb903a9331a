package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"atlas/internal/config"
	"atlas/internal/domain"
	"atlas/internal/engine/access"
	"atlas/internal/history"
	"atlas/internal/identity"
	"atlas/internal/repo"
	"atlas/internal/stream"
)

// Engine holds the application's business operations. Handlers and CLI
// commands call into it; it owns transactions and the audit trail.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Identity identity.Store
	History  history.Writer
	Stream   *stream.Broker
	Config   *config.Config
	Log      *slog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log *slog.Logger) *Engine {
	now := time.Now
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Identity: identity.Store{DB: db, Now: now},
		History:  history.Writer{DB: db, Now: now},
		Stream:   stream.NewBroker(),
		Config:   cfg,
		Log:      log,
		Now:      now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// ProvisionUserInput carries everything needed to create a working account.
type ProvisionUserInput struct {
	Email        string
	Password     string
	Username     string
	FullName     string
	Role         domain.Role
	DepartmentID *string
	Supervised   []string
}

// ProvisionUser creates an account in steps: identity first, then the
// profile, then a best-effort welcome notification. If the profile step
// fails the identity is deleted again so no half-created account can log in.
func (e *Engine) ProvisionUser(ctx context.Context, in ProvisionUserInput) (domain.Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		if at := strings.IndexByte(in.Email, '@'); at > 0 {
			in.Username = in.Email[:at]
		}
	}
	if in.Role == "" {
		in.Role = domain.RoleUsuario
	}
	if err := e.validateProvision(in); err != nil {
		return domain.Profile{}, err
	}

	id, err := e.Identity.Create(ctx, in.Email, in.Password, true)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return domain.Profile{}, &ConflictError{Msg: "este email ya está registrado"}
		}
		return domain.Profile{}, &StepError{Step: "identity", Err: err}
	}

	p := domain.Profile{
		ID:           id.ID,
		Username:     in.Username,
		FullName:     in.FullName,
		Role:         in.Role,
		Email:        in.Email,
		DepartmentID: in.DepartmentID,
		Supervised:   in.Supervised,
		LastActivity: e.nowRFC3339(),
	}
	if err := e.Repo.UpsertProfile(ctx, p); err != nil {
		if derr := e.Identity.Delete(ctx, id.ID); derr != nil {
			e.Log.Error("provision rollback failed", "identity", id.ID, "err", derr)
		}
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return domain.Profile{}, &ConflictError{Msg: "este nombre de usuario ya está en uso"}
		}
		return domain.Profile{}, &StepError{Step: "profile", Err: err}
	}

	welcome := domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: p.ID,
		Type:        "welcome",
		Message:     "Bienvenido a Atlas, " + p.FullName,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertNotification(ctx, welcome); err != nil {
		e.Log.Warn("welcome notification failed", "profile", p.ID, "err", err)
	}
	return p, nil
}

func (e *Engine) validateProvision(in ProvisionUserInput) error {
	if in.Email == "" {
		return &ValidationError{Field: "email", Msg: "required"}
	}
	if d := e.Config.Org.EmailDomain; d != "" && !strings.HasSuffix(in.Email, "@"+d) {
		return &ValidationError{Field: "email", Msg: "must belong to domain " + d}
	}
	if in.Password == "" {
		return &ValidationError{Field: "password", Msg: "required"}
	}
	if in.Username == "" {
		return &ValidationError{Field: "username", Msg: "required"}
	}
	if in.FullName == "" {
		return &ValidationError{Field: "full_name", Msg: "required"}
	}
	if !domain.ValidRole(in.Role) {
		return &ValidationError{Field: "role", Msg: "unknown role " + string(in.Role)}
	}
	return nil
}

// Login authenticates credentials and returns the profile, bumping its
// last-activity stamp.
func (e *Engine) Login(ctx context.Context, email, password string) (domain.Profile, error) {
	id, err := e.Identity.Authenticate(ctx, email, password)
	if err != nil {
		return domain.Profile{}, err
	}
	p, err := e.Repo.GetProfile(ctx, id.ID)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := e.Repo.TouchActivity(ctx, p.ID, e.nowRFC3339()); err != nil {
		e.Log.Warn("touch activity failed", "profile", p.ID, "err", err)
	}
	return p, nil
}

// ChangePassword verifies the current password before setting the new one.
func (e *Engine) ChangePassword(ctx context.Context, profileID, current, next string) error {
	id, err := e.Identity.Get(ctx, profileID)
	if err != nil {
		return err
	}
	if _, err := e.Identity.Authenticate(ctx, id.Email, current); err != nil {
		return err
	}
	if len(next) < 8 {
		return &ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	return e.Identity.UpdatePassword(ctx, profileID, next)
}

// UpdateUserInput patches a profile. Nil fields are left untouched.
type UpdateUserInput struct {
	FullName     *string
	Role         *domain.Role
	DepartmentID *string
	Supervised   []string
}

// UpdateUser applies a management patch to another user's profile.
func (e *Engine) UpdateUser(ctx context.Context, actor domain.Profile, id string, in UpdateUserInput) (domain.Profile, error) {
	if err := access.Require(actor.Role, access.ManageUsers); err != nil {
		return domain.Profile{}, err
	}
	p, err := e.Repo.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if in.FullName != nil {
		p.FullName = *in.FullName
	}
	if in.Role != nil {
		if !domain.ValidRole(*in.Role) {
			return domain.Profile{}, &ValidationError{Field: "role", Msg: "unknown role " + string(*in.Role)}
		}
		p.Role = *in.Role
	}
	if in.DepartmentID != nil {
		if *in.DepartmentID == "" {
			p.DepartmentID = nil
		} else {
			if _, err := e.Repo.GetDepartment(ctx, *in.DepartmentID); err != nil {
				return domain.Profile{}, &ValidationError{Field: "department_id", Msg: "unknown department"}
			}
			p.DepartmentID = in.DepartmentID
		}
	}
	if in.Supervised != nil {
		p.Supervised = in.Supervised
	}
	if err := e.Repo.UpsertProfile(ctx, p); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// DeleteUser removes the profile and its identity. History the user wrote
// is kept; it records what happened.
func (e *Engine) DeleteUser(ctx context.Context, actor domain.Profile, id string) error {
	if err := access.Require(actor.Role, access.ManageUsers); err != nil {
		return err
	}
	if actor.ID == id {
		return &ValidationError{Field: "id", Msg: "cannot delete your own account"}
	}
	if err := e.Repo.DeleteProfile(ctx, id); err != nil {
		return err
	}
	if err := e.Identity.Delete(ctx, id); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return err
	}
	return nil
}

// ListUsers returns every profile, for callers holding user management.
func (e *Engine) ListUsers(ctx context.Context, actor domain.Profile) ([]domain.Profile, error) {
	if err := access.Require(actor.Role, access.ManageUsers); err != nil {
		return nil, err
	}
	return e.Repo.ListProfiles(ctx)
}

// CreateDepartment registers a new department.
func (e *Engine) CreateDepartment(ctx context.Context, actor domain.Profile, name, description string) (domain.Department, error) {
	if err := access.Require(actor.Role, access.ManageDepartments); err != nil {
		return domain.Department{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Department{}, &ValidationError{Field: "name", Msg: "required"}
	}
	d := domain.Department{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertDepartment(ctx, d); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// UpdateDepartment renames or redescribes a department.
func (e *Engine) UpdateDepartment(ctx context.Context, actor domain.Profile, d domain.Department) (domain.Department, error) {
	if err := access.Require(actor.Role, access.ManageDepartments); err != nil {
		return domain.Department{}, err
	}
	if strings.TrimSpace(d.Name) == "" {
		return domain.Department{}, &ValidationError{Field: "name", Msg: "required"}
	}
	if err := e.Repo.UpdateDepartment(ctx, d); err != nil {
		return domain.Department{}, err
	}
	return e.Repo.GetDepartment(ctx, d.ID)
}

// DeleteDepartment removes a department unless profiles or tasks reference it.
func (e *Engine) DeleteDepartment(ctx context.Context, actor domain.Profile, id string) error {
	if err := access.Require(actor.Role, access.ManageDepartments); err != nil {
		return err
	}
	err := e.Repo.DeleteDepartment(ctx, id)
	if errors.Is(err, repo.ErrInUse) {
		return &ConflictError{Msg: "department has members or tasks"}
	}
	return err
}
