package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"atlas/internal/domain"
)

func (s *handlers) registerDepartments(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body departmentList `json:"body"`
	}, error) {
		if _, authErr := s.currentProfile(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.Repo.ListDepartments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body departmentList `json:"body"`
		}{Body: departmentList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/departments",
		Summary:       "Create a department",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body DepartmentRequest
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := s.engine.CreateDepartment(ctx, me.Profile, input.Body.Name, input.Body.Description)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-department",
		Method:      http.MethodPatch,
		Path:        "/departments/{id}",
		Summary:     "Update a department",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body DepartmentRequest
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := s.engine.UpdateDepartment(ctx, me.Profile, domain.Department{
			ID:          input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-department",
		Method:        http.MethodDelete,
		Path:          "/departments/{id}",
		Summary:       "Delete a department",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.DeleteDepartment(ctx, me.Profile, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
