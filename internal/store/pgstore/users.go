package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

const userColumns = `userid, name, email, password_hash, role, team, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Team,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Name, model.NormalizeEmail(u.Email), u.PasswordHash, u.Role, u.Team, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE userid = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		model.NormalizeEmail(email)))
}

func (s *Store) ListUsers(ctx context.Context, q scope.UserQuery) ([]model.User, int64, error) {
	c := userWhere(q.Filter)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+c.sql(), c.args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	limit, offset := c.arg(q.Page.Size), c.arg(q.Page.Offset())
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC, userid ASC
		LIMIT %s OFFSET %s
	`, userColumns, c.sql(), limit, offset), c.args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.User, 0, q.Page.Size)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, mapErr(rows.Err())
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, team = $6, updated_at = $7
		WHERE userid = $1
	`, u.ID, u.Name, model.NormalizeEmail(u.Email), u.PasswordHash, u.Role, u.Team, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM users WHERE userid = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
