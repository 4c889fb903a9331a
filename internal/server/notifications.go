package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"atlas/internal/engine"
)

func (s *handlers) registerNotifications(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body notificationList `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.Repo.ListNotifications(ctx, me.ID)
		if err != nil {
			return nil, handleError(err)
		}
		unread, err := s.engine.Repo.CountUnreadNotifications(ctx, me.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body notificationList `json:"body"`
		}{Body: notificationList{Items: items, Unread: unread}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark one notification as read",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.Repo.MarkNotificationRead(ctx, input.ID, me.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification as read",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.Repo.MarkAllNotificationsRead(ctx, me.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *handlers) registerOverview(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-overview",
		Method:      http.MethodGet,
		Path:        "/admin/overview",
		Summary:     "Administrator dashboard counts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Overview `json:"body"`
	}, error) {
		me, authErr := s.currentProfile(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ov, err := s.engine.AdminOverview(ctx, me.Profile)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Overview `json:"body"`
		}{Body: ov}, nil
	})
}
