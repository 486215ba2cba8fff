package mstats

import (
	"taskhub/internal/model"
)

// Breakdown is the shared shape of every scoped aggregate.
type Breakdown struct {
	Total      int64                    `json:"total"`
	ByStatus   map[model.Status]int64   `json:"byStatus"`
	ByPriority map[model.Priority]int64 `json:"byPriority"`
	// CompletionRate is completed/total in percent, rounded to two places.
	CompletionRate float64 `json:"completionRate"`
}

type Overview struct {
	Breakdown
	Scope       string `json:"scope"`
	Overdue     int64  `json:"overdue"`
	DueThisWeek int64  `json:"dueThisWeek"`
}

type StatusCounts struct {
	Total    int64                  `json:"total"`
	ByStatus map[model.Status]int64 `json:"byStatus"`
}

type TeamStats struct {
	Breakdown
	Team    string `json:"team"`
	Members int64  `json:"members"`
}

type UserStats struct {
	Breakdown
	User     *model.User `json:"user"`
	Assigned int64       `json:"assigned"`
	Created  int64       `json:"created"`
}
