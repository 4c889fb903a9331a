package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"atlas/internal/config"
	"atlas/internal/domain"
	"atlas/internal/engine"
	"atlas/internal/engine/access"
	"atlas/internal/identity"
	"atlas/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Server   config.Config
}

// apiError is the error envelope: a single "error" string, always.
type apiError struct {
	status  int
	Message string `json:"error" example:"task not found"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, msg string) huma.StatusError {
	return &apiError{status: status, Message: msg}
}

// New returns an HTTP handler exposing the Atlas API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the single-string envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		if len(errs) > 0 {
			var parts []string
			for _, e := range errs {
				parts = append(parts, e.Error())
			}
			msg = msg + ": " + strings.Join(parts, "; ")
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newCORSMiddleware(cfg.Server.Server.CORS))
	router.Use(newAuthMiddleware(basePath, cfg.Server.Server.JWTSecret, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Atlas API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &handlers{engine: cfg.Engine, jwtSecret: cfg.Server.Server.JWTSecret}

	registerHealth(group)
	s.registerAuth(group)
	s.registerMe(group)
	s.registerUsers(group)
	s.registerDepartments(group)
	s.registerTasks(group)
	s.registerTimeline(group)
	s.registerNotifications(group)
	s.registerOverview(group)
	s.registerStream(router, basePath)

	return router, nil
}

type handlers struct {
	engine    *engine.Engine
	jwtSecret string
}

// currentProfile resolves the caller's profile. Service principals have
// none and get an empty profile with the privileged role.
func (s *handlers) currentProfile(ctx context.Context) (profile, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return profile{}, newAPIError(http.StatusUnauthorized, "authentication required")
	}
	if p.Service {
		return profile{Profile: domain.Profile{Role: domain.RoleAdministrador, FullName: "service"}, Service: true}, nil
	}
	prof, err := s.engine.Repo.GetProfile(ctx, p.ProfileID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return profile{}, newAPIError(http.StatusUnauthorized, "account no longer exists")
		}
		return profile{}, newAPIError(http.StatusInternalServerError, "internal error")
	}
	return profile{Profile: prof}, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, ve.Error())
	}
	var ce *engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, ce.Error())
	}
	var fe *access.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, fe.Error())
	}
	var ste *engine.StepError
	if errors.As(err, &ste) {
		return newAPIError(http.StatusInternalServerError, ste.Error())
	}
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return newAPIError(http.StatusUnauthorized, "invalid credentials")
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, identity.ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error())
	}
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
