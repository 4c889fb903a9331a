package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"atlas/internal/domain"
	"atlas/internal/engine/access"
)

// Overview is the administrator dashboard snapshot.
type Overview struct {
	Users         int                   `json:"users"`
	Departments   int                   `json:"departments"`
	TasksByStatus map[domain.Status]int `json:"tasks_by_status"`
	OpenTasks     int                   `json:"open_tasks"`
}

// AdminOverview joins the counts behind the dashboard, fetched concurrently.
func (e *Engine) AdminOverview(ctx context.Context, actor domain.Profile) (Overview, error) {
	if err := access.Require(actor.Role, access.ViewOverview); err != nil {
		return Overview{}, err
	}

	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.Repo.CountProfiles(gctx)
		ov.Users = n
		return err
	})
	g.Go(func() error {
		n, err := e.Repo.CountDepartments(gctx)
		ov.Departments = n
		return err
	})
	g.Go(func() error {
		byStatus, err := e.Repo.CountTasksByStatus(gctx)
		ov.TasksByStatus = byStatus
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	for s, n := range ov.TasksByStatus {
		if s != domain.StatusFinalizada {
			ov.OpenTasks += n
		}
	}
	return ov, nil
}
