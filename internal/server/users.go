package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"atlas/internal/domain"
	"atlas/internal/engine"
	"atlas/internal/engine/access"
)

func (s *handlers) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in with email and password",
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		p, err := s.engine.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := mintSession(s.jwtSecret, p, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: SessionResponse{Token: token, Profile: p}}, nil
	})
}

func (s *handlers) registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current profile and navigation",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		unread, err := s.engine.Repo.CountUnreadNotifications(ctx, me.ID)
		if err != nil {
			return nil, handleError(err)
		}
		sections := access.ManagementSections(me.Role)
		if sections == nil {
			sections = []string{}
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			Profile:            me.Profile,
			ManagementSections: sections,
			UnreadCount:        unread,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPut,
		Path:        "/me/password",
		Summary:     "Change own password",
	}, func(ctx context.Context, input *struct {
		Body ChangePasswordRequest
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if me.Service {
			return nil, newAPIError(http.StatusBadRequest, "service callers have no password")
		}
		if err := s.engine.ChangePassword(ctx, me.ID, input.Body.CurrentPassword, input.Body.NewPassword); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *handlers) registerUsers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Provision a user account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*struct {
		Body domain.Profile `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := access.Require(me.Role, access.ManageUsers); err != nil {
			return nil, handleError(err)
		}
		p, err := s.engine.ProvisionUser(ctx, engine.ProvisionUserInput{
			Email:        input.Body.Email,
			Password:     input.Body.Password,
			Username:     input.Body.Username,
			FullName:     input.Body.FullName,
			Role:         domain.Role(input.Body.Role),
			DepartmentID: input.Body.DepartmentID,
			Supervised:   input.Body.Supervised,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Profile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body userList `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		users, err := s.engine.ListUsers(ctx, me.Profile)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body userList `json:"body"`
		}{Body: userList{Items: users}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get a user",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Profile `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if me.ID != input.ID {
			if err := access.Require(me.Role, access.ManageUsers); err != nil {
				return nil, handleError(err)
			}
		}
		p, err := s.engine.Repo.GetProfile(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Profile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Update a user",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateUserRequest
	}) (*struct {
		Body domain.Profile `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var role *domain.Role
		if input.Body.Role != nil {
			r := domain.Role(*input.Body.Role)
			role = &r
		}
		p, err := s.engine.UpdateUser(ctx, me.Profile, input.ID, engine.UpdateUserInput{
			FullName:     input.Body.FullName,
			Role:         role,
			DepartmentID: input.Body.DepartmentID,
			Supervised:   input.Body.Supervised,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Profile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{id}",
		Summary:       "Delete a user",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.DeleteUser(ctx, me.Profile, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
