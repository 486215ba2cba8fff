package mstats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"taskhub/internal/apperr"
	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/respond"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

const week = 7 * 24 * time.Hour

func (h *Handler) handleOverview(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	s := scope.For(p)
	f := scope.Where(s)

	ov, _, err := cache.Remember(c.Request.Context(), h.Cache, cache.NamespaceAnalytics, cache.OverviewKey(p), h.OverviewTTL,
		func(ctx context.Context) (Overview, error) {
			var out Overview
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				b, err := breakdown(gctx, h.Tasks, f)
				out.Breakdown = b
				return err
			})
			g.Go(func() error {
				n, err := dueWithin(gctx, h.Tasks, f, h.Now(), week)
				out.DueThisWeek = n
				return err
			})
			if err := g.Wait(); err != nil {
				return Overview{}, err
			}
			out.Scope = s.Kind.String()
			out.Overdue = out.ByStatus[model.StatusOverdue]
			return out, nil
		})
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, ov)
}

// handleByStatus accepts the task listing filters and narrows the caller's
// scope with them.
func (h *Handler) handleByStatus(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	var params scope.Params
	if err := respond.BindQuery(c, &params); err != nil {
		respond.Error(c, err)
		return
	}
	q, err := scope.Build(p, params)
	if err != nil {
		respond.Error(c, err)
		return
	}

	counts, err := h.Tasks.CountByStatus(c.Request.Context(), q.Filter)
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	out := store.EmptyStatusCounts()
	for k, v := range counts {
		out[k] = v
	}
	respond.OK(c, StatusCounts{Total: sum(out), ByStatus: out})
}

func (h *Handler) handleTeamStats(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	team := strings.TrimSpace(c.Param("team"))
	if !policy.CanViewTeamStats(p, team) {
		respond.Error(c, apperr.Forbidden("not allowed to view this team"))
		return
	}

	ctx := c.Request.Context()
	b, err := breakdown(ctx, h.Tasks, scope.Where(scope.TeamOf(team)))
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	_, members, err := h.Users.ListUsers(ctx, scope.UserQuery{
		Filter: scope.UserFilter{Scope: scope.TeamOf(team)},
		Page:   scope.Page{Number: 1, Size: 1},
	})
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, TeamStats{Breakdown: b, Team: team, Members: members})
}

func (h *Handler) handleUserStats(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	ctx := c.Request.Context()
	u, err := h.Users.GetUser(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(c, apperr.NotFound("user not found"))
		return
	}
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	if !policy.CanViewUserStats(p, u.Principal()) {
		respond.Error(c, apperr.Forbidden("not allowed to view this user's statistics"))
		return
	}

	f := scope.Where(scope.Subject(u.ID))
	out := UserStats{User: u}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := breakdown(gctx, h.Tasks, f)
		out.Breakdown = b
		return err
	})
	g.Go(func() error {
		af := f
		af.Criteria.AssigneeID = u.ID
		n, err := countTasks(gctx, h.Tasks, af)
		out.Assigned = n
		return err
	})
	g.Go(func() error {
		cf := f
		cf.Criteria.CreatorID = u.ID
		n, err := countTasks(gctx, h.Tasks, cf)
		out.Created = n
		return err
	})
	if err := g.Wait(); err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, out)
}
