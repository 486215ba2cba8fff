package muser

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/apperr"
	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/model"
	"taskhub/internal/observability"
	"taskhub/internal/policy"
	"taskhub/internal/respond"
	"taskhub/internal/role"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

var (
	errUserNotFound   = apperr.NotFound("user not found")
	errBadCredentials = apperr.Unauthenticated("invalid email or password")
)

func (h *Handler) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.BcryptCost)
	return string(b), err
}

func (h *Handler) loadUser(ctx context.Context, id string) (*model.User, error) {
	u, err := h.Users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (h *Handler) saveUser(ctx context.Context, u *model.User) error {
	err := h.Users.UpdateUser(ctx, u)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("email already registered")
	case errors.Is(err, store.ErrNotFound):
		return errUserNotFound
	case err != nil:
		return apperr.Internal(err)
	}
	return nil
}

func (h *Handler) issue(u *model.User) (*AuthResponse, error) {
	token, exp, err := h.Tokens.Issue(u)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}

	// Only an admin may create elevated accounts. Anyone else silently gets
	// the user role whatever the payload asked for.
	r := role.User
	if caller, ok := authmw.PrincipalFrom(c); ok && caller.IsAdmin() && req.Role != "" {
		r = role.Role(req.Role)
	}

	hash, err := h.hash(req.Password)
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	now := h.Now()
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        model.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         r,
		Team:         strings.TrimSpace(req.Team),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx := c.Request.Context()
	if err := h.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respond.Error(c, apperr.Conflict("email already registered"))
			return
		}
		respond.Error(c, apperr.Internal(err))
		return
	}
	observability.Entry(c).WithField("user", u.ID).WithField("role", u.Role).Info("user registered")

	resp, err := h.issue(u)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, resp)
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}

	u, err := h.Users.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(c, errBadCredentials)
		return
	}
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		respond.Error(c, errBadCredentials)
		return
	}

	resp, err := h.issue(u)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) handleLogout(c *gin.Context) {
	s, ok := authmw.SessionFrom(c)
	if !ok {
		respond.Error(c, apperr.Unauthenticated("no token provided"))
		return
	}
	exp := s.ExpiresAt
	if exp.IsZero() {
		exp = h.Now().Add(h.Tokens.TTL())
	}
	if err := h.Revoked.Revoke(c.Request.Context(), s.Token, exp); err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, gin.H{"loggedOut": true})
}

func (h *Handler) handleProfileGet(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	u, err := h.loadUser(c.Request.Context(), p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, u)
}

func (h *Handler) handleProfileUpdate(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	var req ProfileUpdateRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	if req.Name == nil && req.Password == nil {
		respond.Error(c, apperr.Validation("provide name and/or password", nil))
		return
	}

	ctx := c.Request.Context()
	u, err := h.loadUser(ctx, p.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Password != nil {
		hash, err := h.hash(*req.Password)
		if err != nil {
			respond.Error(c, apperr.Internal(err))
			return
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = h.Now()
	if err := h.saveUser(ctx, u); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, u)
}

func (h *Handler) handleListUsers(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	var params scope.UserParams
	if err := respond.BindQuery(c, &params); err != nil {
		respond.Error(c, err)
		return
	}
	q, err := scope.BuildUsers(p, params)
	if err != nil {
		respond.Error(c, err)
		return
	}

	items, total, err := h.Users.ListUsers(c.Request.Context(), q)
	if err != nil {
		respond.Error(c, apperr.Internal(err))
		return
	}
	respond.OK(c, respond.Page[model.User]{
		Items: items,
		Total: total,
		Page:  q.Page.Number,
		Limit: q.Page.Size,
		Pages: q.Page.Pages(total),
	})
}

func (h *Handler) handleUserGet(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	u, err := h.loadUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !policy.CanViewUser(p, u.Principal()) {
		respond.Error(c, errUserNotFound)
		return
	}
	respond.OK(c, u)
}

func (h *Handler) handleUserUpdate(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	var req UserUpdateRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	if req.Name == nil && req.Email == nil && req.Team == nil {
		respond.Error(c, apperr.Validation("provide fields to update", nil))
		return
	}

	ctx := c.Request.Context()
	u, err := h.loadUser(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !policy.CanManage(p, u.Principal()) {
		respond.Error(c, apperr.Forbidden("not allowed to manage this user"))
		return
	}

	teamChanged := false
	if req.Team != nil {
		team := strings.TrimSpace(*req.Team)
		if team != u.Team {
			if !p.IsAdmin() {
				respond.Error(c, apperr.Forbidden("managers cannot move users to another team"))
				return
			}
			u.Team = team
			teamChanged = true
		}
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = model.NormalizeEmail(*req.Email)
	}
	u.UpdatedAt = h.Now()

	if err := h.saveUser(ctx, u); err != nil {
		respond.Error(c, err)
		return
	}
	if teamChanged {
		h.Cache.Invalidate(ctx, cache.TaskNamespaces...)
	}
	respond.OK(c, u)
}

func (h *Handler) handleRoleUpdate(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	id := c.Param("id")
	if policy.IsSelf(p, id) {
		respond.Error(c, apperr.Forbidden("cannot change your own role"))
		return
	}
	var req RoleUpdateRequest
	if err := respond.BindJSON(c, &req); err != nil {
		respond.Error(c, err)
		return
	}
	r := role.Role(req.Role)
	if !policy.CanAssignRole(p, r) {
		respond.Error(c, apperr.Forbidden("insufficient role"))
		return
	}

	ctx := c.Request.Context()
	u, err := h.loadUser(ctx, id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if u.Role != r {
		u.Role = r
		u.UpdatedAt = h.Now()
		if err := h.saveUser(ctx, u); err != nil {
			respond.Error(c, err)
			return
		}
		h.Cache.Invalidate(ctx, cache.TaskNamespaces...)
		observability.Entry(c).WithField("user", u.ID).WithField("role", r).Info("role changed")
	}
	respond.OK(c, u)
}

func (h *Handler) handleUserDelete(c *gin.Context) {
	p, _ := authmw.PrincipalFrom(c)
	id := c.Param("id")
	if policy.IsSelf(p, id) {
		respond.Error(c, apperr.Validation("cannot delete your own account", nil))
		return
	}

	ctx := c.Request.Context()
	u, err := h.loadUser(ctx, id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if !policy.CanManage(p, u.Principal()) {
		respond.Error(c, apperr.Forbidden("not allowed to manage this user"))
		return
	}
	if err := h.Users.DeleteUser(ctx, u.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		respond.Error(c, apperr.Internal(err))
		return
	}
	h.Cache.Invalidate(ctx, cache.TaskNamespaces...)
	respond.OK(c, gin.H{"id": u.ID, "deleted": true})
}
