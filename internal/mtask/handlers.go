package mtask

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskhub/internal/apperr"
	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/model"
	"taskhub/internal/notify"
	"taskhub/internal/policy"
	"taskhub/internal/respond"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

var errTaskNotFound = apperr.NotFound("task not found")

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		respond.Error(c, apperr.Unauthenticated("no token provided"))
	}
	return p, ok
}

// loadTask fetches id and applies the access check. A task the principal
// may not access is reported exactly like a missing one.
func (h *Handler) loadTask(ctx context.Context, p model.Principal, id string) (*model.Task, error) {
	t, err := h.Tasks.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errTaskNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !policy.CanAccessTask(p, t) {
		return nil, errTaskNotFound
	}
	return t, nil
}

// loadAssignee resolves the user a task is being handed to.
func (h *Handler) loadAssignee(ctx context.Context, id string) (*model.User, error) {
	u, err := h.Users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.InvalidField("assigneeId", "user does not exist")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (h *Handler) invalidate(ctx context.Context) {
	h.Cache.Invalidate(ctx, cache.TaskNamespaces...)
}

func (h *Handler) emit(typ notify.EventType, p model.Principal, t *model.Task) {
	e := notify.Event{
		Type:           typ,
		TaskID:         t.ID,
		Title:          t.Title,
		ActorID:        p.ID,
		Team:           t.Team,
		AdminBroadcast: true,
		At:             h.Now(),
	}
	if t.AssigneeID != "" && t.AssigneeID != p.ID {
		e.Recipient = t.AssigneeID
	}
	h.Notifier.Enqueue(e)
}

func assignmentMail(p model.Principal, to *model.User, title string) *notify.Mail {
	who := p.Name
	if who == "" {
		who = "Someone"
	}
	return &notify.Mail{
		To:      to.Email,
		Subject: "New task assigned: " + title,
		Body:    fmt.Sprintf("Hi %s,\n\n%s assigned you the task %q.\n", to.Name, who, title),
	}
}

func (h *Handler) handleTaskCreate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		respond.Error(c, apperr.InvalidField("title", "is required"))
		return
	}

	ctx := c.Request.Context()
	var assignee *model.User
	if req.AssigneeID != "" {
		if req.AssigneeID != p.ID && !policy.CanAssign(p) {
			respond.Error(c, apperr.Forbidden("insufficient role to assign tasks to others"))
			return
		}
		u, err := h.loadAssignee(ctx, req.AssigneeID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		assignee = u
	}

	team := p.Team
	if req.Team != nil {
		team = strings.TrimSpace(*req.Team)
	}
	if !policy.CanSetTaskTeam(p, team) {
		respond.Error(c, apperr.Forbidden("cannot label tasks with another team"))
		return
	}

	t := &model.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
		Status:      model.Status(req.Status),
		CreatorID:   p.ID,
		AssigneeID:  req.AssigneeID,
		Team:        team,
	}
	if req.DueDate != nil {
		due := req.DueDate.UTC()
		t.DueDate = &due
	}
	t.PrepareSave(h.Now())

	if err := h.Tasks.CreateTask(ctx, t); err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.invalidate(ctx)

	e := notify.Event{
		Type: notify.TaskCreated, TaskID: t.ID, Title: t.Title, ActorID: p.ID,
		Team: t.Team, AdminBroadcast: true, At: h.Now(),
	}
	if assignee != nil && assignee.ID != p.ID {
		e.Recipient = assignee.ID
		e.Mail = assignmentMail(p, assignee, t.Title)
	}
	h.Notifier.Enqueue(e)

	respond.Created(c, t)
}

func (h *Handler) listTasks(c *gin.Context, p model.Principal, params scope.Params) {
	q, err := scope.Build(p, params)
	if err != nil {
		respond.Error(c, err)
		return
	}

	key := cache.TaskListKey(p, q.Fingerprint())
	page, _, err := cache.Remember(c.Request.Context(), h.Cache, cache.NamespaceTasks, key, h.ListTTL,
		func(ctx context.Context) (respond.Page[model.Task], error) {
			items, total, err := h.Tasks.ListTasks(ctx, q)
			if err != nil {
				return respond.Page[model.Task]{}, err
			}
			return respond.Page[model.Task]{
				Items: items,
				Total: total,
				Page:  q.Page.Number,
				Limit: q.Page.Size,
				Pages: q.Page.Pages(total),
			}, nil
		})
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, page)
}

func (h *Handler) handleListTasks(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var params scope.Params
	if err := respond.BindQuery(c, &params); err != nil {
		respond.Error(c, err)
		return
	}
	h.listTasks(c, p, params)
}

func (h *Handler) handleSearchTasks(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var params scope.Params
	if err := respond.BindQuery(c, &params); err != nil {
		respond.Error(c, err)
		return
	}
	params.Search = strings.TrimSpace(c.Query("q"))
	if params.Search == "" {
		respond.Error(c, apperr.InvalidField("q", "is required"))
		return
	}
	h.listTasks(c, p, params)
}

func (h *Handler) handleAssignedToMe(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var params scope.Params
	if err := respond.BindQuery(c, &params); err != nil {
		respond.Error(c, err)
		return
	}
	params.Assignee = p.ID
	h.listTasks(c, p, params)
}

func (h *Handler) handleTaskGet(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	t, err := h.loadTask(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, t)
}

func (h *Handler) handleTaskUpdate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.loadTask(ctx, p, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	var req UpdateTaskRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	if req.empty() {
		respond.Error(c, apperr.Validation("provide fields to update", nil))
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		respond.Error(c, apperr.InvalidField("title", "is required"))
		return
	}
	if req.Team != nil && !policy.CanSetTaskTeam(p, strings.TrimSpace(*req.Team)) {
		respond.Error(c, apperr.Forbidden("cannot label tasks with another team"))
		return
	}

	req.apply(t)
	t.PrepareSave(h.Now())
	if err := h.Tasks.UpdateTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.Error(c, errTaskNotFound)
			return
		}
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.invalidate(ctx)
	h.emit(notify.TaskUpdated, p, t)

	respond.OK(c, t)
}

func (h *Handler) handleTaskDelete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.loadTask(ctx, p, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.Tasks.DeleteTask(ctx, t.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.invalidate(ctx)
	h.emit(notify.TaskDeleted, p, t)

	respond.OK(c, gin.H{"id": t.ID, "deleted": true})
}

func (h *Handler) handleTaskAssign(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !policy.CanAssign(p) {
		respond.Error(c, apperr.Forbidden("insufficient role to assign tasks"))
		return
	}
	ctx := c.Request.Context()
	t, err := h.loadTask(ctx, p, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	var req AssignRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	assignee, err := h.loadAssignee(ctx, req.AssigneeID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	previous := t.AssigneeID
	t.AssigneeID = assignee.ID
	t.PrepareSave(h.Now())
	if err := h.Tasks.UpdateTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.Error(c, errTaskNotFound)
			return
		}
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.invalidate(ctx)

	e := notify.Event{
		Type: notify.TaskAssigned, TaskID: t.ID, Title: t.Title, ActorID: p.ID,
		Team: t.Team, AdminBroadcast: true, At: h.Now(),
	}
	if assignee.ID != p.ID {
		e.Recipient = assignee.ID
		if assignee.ID != previous {
			e.Mail = assignmentMail(p, assignee, t.Title)
		}
	}
	h.Notifier.Enqueue(e)

	respond.OK(c, t)
}

func (h *Handler) handleBulkAssign(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !policy.CanAssign(p) {
		respond.Error(c, apperr.Forbidden("insufficient role to assign tasks"))
		return
	}

	var req BulkAssignRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	assignee, err := h.loadAssignee(ctx, req.AssigneeID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	matched, err := h.Tasks.BulkAssign(ctx, scope.Where(scope.For(p)), req.TaskIDs, assignee.ID, h.Now())
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.invalidate(ctx)

	e := notify.Event{
		Type: notify.TasksBulkAssigned, ActorID: p.ID, Team: p.Team,
		AdminBroadcast: true, Count: matched, At: h.Now(),
	}
	if assignee.ID != p.ID && matched > 0 {
		e.Recipient = assignee.ID
		e.Mail = &notify.Mail{
			To:      assignee.Email,
			Subject: fmt.Sprintf("%d tasks assigned to you", matched),
			Body:    fmt.Sprintf("Hi %s,\n\n%d tasks were assigned to you.\n", assignee.Name, matched),
		}
	}
	h.Notifier.Enqueue(e)

	respond.OK(c, BulkAssignResult{Requested: len(req.TaskIDs), Matched: matched})
}
