package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"atlas/internal/domain"
	"atlas/internal/engine"
)

func (s *handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if me.Service {
			return nil, newAPIError(http.StatusBadRequest, "service callers cannot create tasks")
		}
		t, err := s.engine.CreateTask(ctx, me.Profile, engine.CreateTaskInput{
			Title:        input.Body.Titulo,
			Description:  input.Body.Descripcion,
			Priority:     domain.Priority(input.Body.Prioridad),
			AssignedTo:   input.Body.AssignedTo,
			AssignedText: input.Body.AssignedText,
			DepartmentID: input.Body.Departamento,
			Private:      input.Body.Privada,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List visible tasks",
	}, func(ctx context.Context, input *struct {
		Estado    string `query:"estado" doc:"Status filter; OPEN_TASKS matches everything not finished"`
		Prioridad string `query:"prioridad"`
		Assignee  string `query:"assignee"`
		Q         string `query:"q" doc:"Case-insensitive text match on title and description"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.VisibleTasks(ctx, me.Profile, engine.TaskFilters{
			Status:   input.Estado,
			Priority: input.Prioridad,
			Assignee: input.Assignee,
			Query:    input.Q,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := s.engine.GetTask(ctx, me.Profile, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTaskRequest
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var prio *domain.Priority
		if input.Body.Prioridad != nil {
			p := domain.Priority(*input.Body.Prioridad)
			prio = &p
		}
		var status *domain.Status
		if input.Body.Estado != nil {
			st := domain.Status(*input.Body.Estado)
			status = &st
		}
		t, err := s.engine.UpdateTask(ctx, me.Profile, input.ID, engine.UpdateTaskInput{
			Title:       input.Body.Titulo,
			Description: input.Body.Descripcion,
			Priority:    prio,
			Status:      status,
			AssignedTo:  input.Body.AssignedTo,
			Private:     input.Body.Privada,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete a task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.DeleteTask(ctx, me.Profile, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func (s *handlers) registerTimeline(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/history",
		Summary:     "Task timeline: audit entries and chat, oldest first",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body timelineResponse `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.Timeline(ctx, me.Profile, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []engine.TimelineEntry{}
		}
		return &struct {
			Body timelineResponse `json:"body"`
		}{Body: timelineResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "task-chat",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/chat",
		Summary:       "Post a chat message on a task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body ChatMessageRequest
	}) (*struct {
		Body domain.HistoryEntry `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := s.engine.AddChatMessage(ctx, me.Profile, input.ID, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HistoryEntry `json:"body"`
		}{Body: entry}, nil
	})
}
