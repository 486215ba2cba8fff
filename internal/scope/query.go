package scope

import (
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (MaxPage-1)*MaxLimit inside int.
	MaxPage = math.MaxInt / MaxLimit
)

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortDueDate   SortField = "dueDate"
	SortPriority  SortField = "priority"
)

func (f SortField) Valid() bool {
	return f == SortCreatedAt || f == SortDueDate || f == SortPriority
}

type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is newest first.
func DefaultSort() Sort {
	return Sort{Field: SortCreatedAt, Desc: true}
}

// Less orders a before b. Tasks without a due date sort last in both
// directions, and ties fall back to the id so pages are stable.
func (s Sort) Less(a, b *model.Task) bool {
	var cmp int
	switch s.Field {
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			cmp = 0
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		default:
			cmp = a.DueDate.Compare(*b.DueDate)
		}
	case SortPriority:
		cmp = a.Priority.Rank() - b.Priority.Rank()
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp == 0 {
		return a.ID < b.ID
	}
	if s.Desc {
		return cmp > 0
	}
	return cmp < 0
}

type Page struct {
	Number int
	Size   int
}

// Offset is the number of records before the page. It saturates at
// math.MaxInt instead of wrapping.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Pages is the number of pages needed for total records.
func (p Page) Pages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

type Query struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

// Fingerprint is a stable hash of every dimension of the query, used to key
// cached result pages.
func (q Query) Fingerprint() string {
	c := q.Filter.Criteria
	ids := slices.Clone(c.IDs)
	slices.Sort(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|s=%s|p=%s|q=%s|a=%s|c=%s|t=%s|from=%s|to=%s|ids=%s|sort=%s:%t|page=%d:%d",
		q.Filter.Scope.Key(), c.Status, c.Priority, strings.ToLower(c.Search), c.AssigneeID, c.CreatorID, c.Team,
		fmtTime(c.DueFrom), fmtTime(c.DueTo), strings.Join(ids, ","), q.Sort.Field, q.Sort.Desc,
		q.Page.Number, q.Page.Size)

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return strconv.FormatUint(h.Sum64(), 16)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Params are the raw listing parameters as they arrive on the query string.
type Params struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Search   string `form:"search"`
	Assignee string `form:"assignee"`
	Creator  string `form:"creator"`
	Team     string `form:"team"`
	DueFrom  string `form:"dueFrom"`
	DueTo    string `form:"dueTo"`
	Page     string `form:"page"`
	Limit    string `form:"limit"`
	SortBy   string `form:"sortBy"`
	Order    string `form:"order"`
}

// Build validates params and composes them with the role scope of p.
func Build(p model.Principal, params Params) (Query, error) {
	fields := map[string]string{}
	q := Query{Filter: Where(For(p)), Sort: DefaultSort()}
	c := &q.Filter.Criteria

	if params.Status != "" {
		st, ok := model.ParseStatus(params.Status)
		if !ok {
			fields["status"] = "must be one of todo, in-progress, completed, overdue"
		}
		c.Status = st
	}
	if params.Priority != "" {
		pr, ok := model.ParsePriority(params.Priority)
		if !ok {
			fields["priority"] = "must be one of low, medium, high"
		}
		c.Priority = pr
	}
	c.Search = strings.TrimSpace(params.Search)
	c.AssigneeID = strings.TrimSpace(params.Assignee)
	c.CreatorID = strings.TrimSpace(params.Creator)
	c.Team = strings.TrimSpace(params.Team)

	if params.DueFrom != "" {
		t, err := parseDate(params.DueFrom, false)
		if err != nil {
			fields["dueFrom"] = "must be an RFC3339 timestamp or YYYY-MM-DD date"
		}
		c.DueFrom = t
	}
	if params.DueTo != "" {
		t, err := parseDate(params.DueTo, true)
		if err != nil {
			fields["dueTo"] = "must be an RFC3339 timestamp or YYYY-MM-DD date"
		}
		c.DueTo = t
	}
	if c.DueFrom != nil && c.DueTo != nil && c.DueTo.Before(*c.DueFrom) {
		fields["dueTo"] = "must not be before dueFrom"
	}

	page, errs := parsePage(params.Page, params.Limit)
	for k, v := range errs {
		fields[k] = v
	}
	q.Page = page

	if params.SortBy != "" {
		f := SortField(strings.TrimSpace(params.SortBy))
		if !f.Valid() {
			fields["sortBy"] = "must be one of createdAt, dueDate, priority"
		} else {
			q.Sort.Field = f
		}
	}
	switch strings.ToLower(strings.TrimSpace(params.Order)) {
	case "":
	case "asc":
		q.Sort.Desc = false
	case "desc":
		q.Sort.Desc = true
	default:
		fields["order"] = "must be asc or desc"
	}

	if len(fields) > 0 {
		return Query{}, apperr.Validation("invalid query parameters", fields)
	}
	return q, nil
}

// parsePage applies the paging defaults: page 1, limit 10, limit clamped to
// MaxLimit and page clamped to MaxPage.
func parsePage(pageRaw, limitRaw string) (Page, map[string]string) {
	page := Page{Number: 1, Size: DefaultLimit}
	var fields map[string]string

	if pageRaw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(pageRaw))
		if err != nil {
			fields = map[string]string{"page": "must be an integer"}
		} else if n > 1 {
			page.Number = min(n, MaxPage)
		}
	}
	if limitRaw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(limitRaw))
		if err != nil {
			if fields == nil {
				fields = map[string]string{}
			}
			fields["limit"] = "must be an integer"
		} else {
			page.Size = normalizeLimit(n)
		}
	}
	return page, fields
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// parseDate accepts RFC3339 or a plain date. A plain date used as an upper
// bound covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
