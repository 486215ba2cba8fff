package mstats

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

func sum[K comparable](m map[K]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func completionRate(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)*10000/float64(total)) / 100
}

// breakdown runs the status and priority counts of f concurrently.
func breakdown(ctx context.Context, tasks store.TaskStore, f scope.Filter) (Breakdown, error) {
	var byStatus map[model.Status]int64
	var byPriority map[model.Priority]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byStatus, err = tasks.CountByStatus(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		byPriority, err = tasks.CountByPriority(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return Breakdown{}, err
	}

	statuses := store.EmptyStatusCounts()
	for k, v := range byStatus {
		statuses[k] = v
	}
	priorities := store.EmptyPriorityCounts()
	for k, v := range byPriority {
		priorities[k] = v
	}

	total := sum(statuses)
	return Breakdown{
		Total:          total,
		ByStatus:       statuses,
		ByPriority:     priorities,
		CompletionRate: completionRate(statuses[model.StatusCompleted], total),
	}, nil
}

// dueWithin counts the open tasks of f due between now and now+window.
func dueWithin(ctx context.Context, tasks store.TaskStore, f scope.Filter, now time.Time, window time.Duration) (int64, error) {
	from, to := now, now.Add(window)
	f.Criteria.DueFrom = &from
	f.Criteria.DueTo = &to
	counts, err := tasks.CountByStatus(ctx, f)
	if err != nil {
		return 0, err
	}
	return sum(counts) - counts[model.StatusCompleted], nil
}

// countTasks returns the size of f without materializing a page.
func countTasks(ctx context.Context, tasks store.TaskStore, f scope.Filter) (int64, error) {
	_, total, err := tasks.ListTasks(ctx, scope.Query{
		Filter: f,
		Sort:   scope.DefaultSort(),
		Page:   scope.Page{Number: 1, Size: 1},
	})
	return total, err
}
