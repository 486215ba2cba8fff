package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

const taskColumns = `taskid, title, description, due_date, priority, status,
	creator_id, assignee_id, team, created_at, updated_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status,
		&t.CreatorID, &t.AssigneeID, &t.Team, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, t.ID, t.Title, t.Description, t.DueDate, t.Priority, t.Status,
		t.CreatorID, t.AssigneeID, t.Team, t.CreatedAt, t.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE taskid = $1`, id))
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, priority = $5, status = $6,
		    assignee_id = $7, team = $8, updated_at = $9
		WHERE taskid = $1
	`, t.ID, t.Title, t.Description, t.DueDate, t.Priority, t.Status, t.AssigneeID, t.Team, t.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE taskid = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, q scope.Query) ([]model.Task, int64, error) {
	c := taskWhere(q.Filter)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+c.sql(), c.args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	limit, offset := c.arg(q.Page.Size), c.arg(q.Page.Offset())
	sql := fmt.Sprintf(`
		SELECT %s
		FROM tasks
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s
	`, taskColumns, c.sql(), taskOrderClause(q.Sort), limit, offset)

	rows, err := s.pool.Query(ctx, sql, c.args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]model.Task, 0, q.Page.Size)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, mapErr(rows.Err())
}

func (s *Store) countBy(ctx context.Context, column string, f scope.Filter, fn func(key string, n int64)) error {
	c := taskWhere(f)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM tasks WHERE %s GROUP BY %s`, column, c.sql(), column),
		c.args...)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context, f scope.Filter) (map[model.Status]int64, error) {
	out := store.EmptyStatusCounts()
	err := s.countBy(ctx, "status", f, func(k string, n int64) { out[model.Status(k)] = n })
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountByPriority(ctx context.Context, f scope.Filter) (map[model.Priority]int64, error) {
	out := store.EmptyPriorityCounts()
	err := s.countBy(ctx, "priority", f, func(k string, n int64) { out[model.Priority(k)] = n })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// bulkAssignSQL renders the single UPDATE behind BulkAssign.
func bulkAssignSQL(f scope.Filter, ids []string, assigneeID string, now time.Time) (string, []any) {
	f.Criteria.IDs = ids
	c := taskWhere(f)
	who, at := c.arg(assigneeID), c.arg(now)
	sql := fmt.Sprintf(`
		UPDATE tasks
		SET assignee_id = %s,
		    updated_at = %s,
		    status = CASE WHEN due_date IS NOT NULL AND due_date < %s AND status <> 'completed'
		                  THEN 'overdue' ELSE status END
		WHERE %s
	`, who, at, at, c.sql())
	return sql, c.args
}

func (s *Store) BulkAssign(ctx context.Context, f scope.Filter, ids []string, assigneeID string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sql, args := bulkAssignSQL(f, ids, assigneeID, now)
	ct, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return ct.RowsAffected(), nil
}
