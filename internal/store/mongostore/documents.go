package mongostore

import (
	"time"

	"taskhub/internal/model"
	"taskhub/internal/role"
)

type taskDoc struct {
	ID           string     `bson:"_id"`
	Title        string     `bson:"title"`
	Description  string     `bson:"description"`
	DueDate      *time.Time `bson:"dueDate,omitempty"`
	NoDue        bool       `bson:"noDue"`
	Priority     string     `bson:"priority"`
	PriorityRank int        `bson:"priorityRank"`
	Status       string     `bson:"status"`
	CreatorID    string     `bson:"creatorId"`
	AssigneeID   string     `bson:"assigneeId"`
	Team         string     `bson:"team"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func toTaskDoc(t *model.Task) taskDoc {
	return taskDoc{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		DueDate:      t.DueDate,
		NoDue:        t.DueDate == nil,
		Priority:     string(t.Priority),
		PriorityRank: t.Priority.Rank(),
		Status:       string(t.Status),
		CreatorID:    t.CreatorID,
		AssigneeID:   t.AssigneeID,
		Team:         t.Team,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (d taskDoc) task() model.Task {
	t := model.Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Priority:    model.Priority(d.Priority),
		Status:      model.Status(d.Status),
		CreatorID:   d.CreatorID,
		AssigneeID:  d.AssigneeID,
		Team:        d.Team,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}
	return t
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Role         string    `bson:"role"`
	Team         string    `bson:"team"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        model.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Team:         u.Team,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) user() model.User {
	return model.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         role.Role(d.Role),
		Team:         d.Team,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type revokedDoc struct {
	Digest    string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expiresAt"`
}
