package scope

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"taskhub/internal/role"
)

func TestForByRole(t *testing.T) {
	assert.Equal(t, All(), For(model.Principal{ID: "a", Role: role.Admin, Team: "Sales"}))
	assert.Equal(t, Scope{Kind: Team, Team: "Sales", PrincipalID: "m"}, For(model.Principal{ID: "m", Role: role.Manager, Team: "Sales"}))
	assert.Equal(t, Subject("m2"), For(model.Principal{ID: "m2", Role: role.Manager}))
	assert.Equal(t, Subject("u"), For(model.Principal{ID: "u", Role: role.User, Team: "Sales"}))
	assert.Equal(t, Subject("x"), For(model.Principal{ID: "x", Role: role.Role("root")}))
}

func TestManagerScopeKeepsOwnTasksOutsideTeam(t *testing.T) {
	s := For(model.Principal{ID: "m", Role: role.Manager, Team: "Engineering"})
	assert.True(t, s.Matches(&model.Task{ID: "1", CreatorID: "x", Team: "Engineering"}))
	assert.True(t, s.Matches(&model.Task{ID: "2", CreatorID: "x", AssigneeID: "m", Team: "Sales"}))
	assert.False(t, s.Matches(&model.Task{ID: "3", CreatorID: "x", Team: "Sales"}))
	assert.False(t, TeamOf("Engineering").Matches(&model.Task{ID: "4", CreatorID: "m", Team: "Sales"}))
}

func TestEmptyScopesMatchNothing(t *testing.T) {
	task := &model.Task{ID: "t", CreatorID: "c"}
	assert.False(t, TeamOf("").Matches(task))
	assert.False(t, Subject("").Matches(task))
	assert.False(t, Subject("").Matches(&model.Task{ID: "t2"}))
	assert.True(t, All().Matches(task))
}

var (
	testIDs   = []string{"u1", "u2", "u3", "m1", "m2", "a1"}
	testTeams = []string{"", "Sales", "Engineering"}
)

func randomTasks(r *rand.Rand, n int) []*model.Task {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*model.Task, 0, n)
	for i := range n {
		t := &model.Task{
			ID:        fmt.Sprintf("t%03d", i),
			Title:     fmt.Sprintf("task %d", i),
			CreatorID: testIDs[r.IntN(len(testIDs))],
			Team:      testTeams[r.IntN(len(testTeams))],
			Status:    model.Statuses()[r.IntN(4)],
			Priority:  model.Priorities()[r.IntN(3)],
			CreatedAt: now.Add(time.Duration(r.IntN(1000)) * time.Minute),
		}
		if r.IntN(3) > 0 {
			t.AssigneeID = testIDs[r.IntN(len(testIDs))]
		}
		if r.IntN(2) == 0 {
			due := now.Add(time.Duration(r.IntN(240)-120) * time.Hour)
			t.DueDate = &due
		}
		out = append(out, t)
	}
	return out
}

func testPrincipals() []model.Principal {
	var out []model.Principal
	for _, id := range testIDs {
		for _, r := range role.All() {
			for _, team := range testTeams {
				out = append(out, model.Principal{ID: id, Role: r, Team: team})
			}
		}
	}
	return out
}

// TestScopeMatchesPolicy checks that the bulk filter admits exactly the tasks
// the single-resource policy grants.
func TestScopeMatchesPolicy(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	tasks := randomTasks(r, 400)

	for _, p := range testPrincipals() {
		s := For(p)
		for _, task := range tasks {
			require.Equal(t, policy.CanAccessTask(p, task), s.Matches(task),
				"principal %+v task %+v", p, task)
		}
	}
}

func TestUserScopeIsCreatorOrAssignee(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	tasks := randomTasks(r, 300)
	p := model.Principal{ID: "u2", Role: role.User, Team: "Sales"}

	q, err := Build(p, Params{Team: "Sales", Limit: "100"})
	require.NoError(t, err)

	for _, task := range tasks {
		if q.Filter.Matches(task) {
			assert.True(t, task.CreatorID == "u2" || task.AssigneeID == "u2", "leaked %s", task.ID)
			assert.Equal(t, "Sales", task.Team)
		}
	}
}

func TestManagerCannotWidenScopeWithTeamParam(t *testing.T) {
	p := model.Principal{ID: "m1", Role: role.Manager, Team: "Engineering"}
	q, err := Build(p, Params{Team: "Sales"})
	require.NoError(t, err)

	assert.Equal(t, Team, q.Filter.Scope.Kind)
	assert.Equal(t, "Engineering", q.Filter.Scope.Team)
	assert.False(t, q.Filter.Matches(&model.Task{ID: "s", CreatorID: "x", Team: "Sales"}))
	assert.False(t, q.Filter.Matches(&model.Task{ID: "e", CreatorID: "x", Team: "Engineering"}))

	q, err = Build(p, Params{})
	require.NoError(t, err)
	assert.True(t, q.Filter.Matches(&model.Task{ID: "e", CreatorID: "x", Team: "Engineering"}))
}

func TestBuildDefaults(t *testing.T) {
	q, err := Build(model.Principal{ID: "u", Role: role.User}, Params{})
	require.NoError(t, err)
	assert.Equal(t, Page{Number: 1, Size: DefaultLimit}, q.Page)
	assert.Equal(t, DefaultSort(), q.Sort)
	assert.Zero(t, q.Page.Offset())
}

func TestBuildPaging(t *testing.T) {
	p := model.Principal{ID: "u", Role: role.User}
	cases := []struct {
		page, limit string
		want        Page
	}{
		{"3", "20", Page{Number: 3, Size: 20}},
		{"0", "500", Page{Number: 1, Size: MaxLimit}},
		{"-2", "-1", Page{Number: 1, Size: DefaultLimit}},
		{"", "100", Page{Number: 1, Size: 100}},
		{"1000000000000000000", "10", Page{Number: MaxPage, Size: 10}},
		{"2000000000000000000", "100", Page{Number: MaxPage, Size: MaxLimit}},
	}
	for _, tc := range cases {
		q, err := Build(p, Params{Page: tc.page, Limit: tc.limit})
		require.NoError(t, err)
		assert.Equal(t, tc.want, q.Page)
	}

	q, _ := Build(p, Params{Page: "3", Limit: "20"})
	assert.Equal(t, 40, q.Page.Offset())
	assert.Equal(t, 3, q.Page.Pages(41))
	assert.Equal(t, 0, q.Page.Pages(0))

	q, err := Build(p, Params{Page: "2000000000000000000", Limit: "100"})
	require.NoError(t, err)
	assert.Positive(t, q.Page.Offset())
}

func TestOffsetSaturates(t *testing.T) {
	assert.Equal(t, math.MaxInt, Page{Number: math.MaxInt, Size: MaxLimit}.Offset())
	assert.Equal(t, (MaxPage-1)*MaxLimit, Page{Number: MaxPage, Size: MaxLimit}.Offset())
	assert.Zero(t, Page{Number: 5, Size: 0}.Offset())
}

func TestBuildSort(t *testing.T) {
	p := model.Principal{ID: "u", Role: role.User}
	q, err := Build(p, Params{SortBy: "dueDate", Order: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: SortDueDate}, q.Sort)

	_, err = Build(p, Params{SortBy: "title"})
	require.Error(t, err)
	assert.Contains(t, apperr.As(err).Fields, "sortBy")
}

func TestBuildValidation(t *testing.T) {
	_, err := Build(model.Principal{ID: "u", Role: role.User}, Params{
		Status:   "done",
		Priority: "urgent",
		DueFrom:  "yesterday",
		Page:     "one",
		Limit:    "ten",
		Order:    "sideways",
	})
	require.Error(t, err)
	e := apperr.As(err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	for _, f := range []string{"status", "priority", "dueFrom", "page", "limit", "order"} {
		assert.Contains(t, e.Fields, f)
	}
}

func TestBuildDueRange(t *testing.T) {
	p := model.Principal{ID: "u", Role: role.Admin}
	q, err := Build(p, Params{DueFrom: "2026-05-01", DueTo: "2026-05-01"})
	require.NoError(t, err)

	inside := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 5, 2, 0, 0, 1, 0, time.UTC)
	assert.True(t, q.Filter.Matches(&model.Task{ID: "a", DueDate: &inside}))
	assert.False(t, q.Filter.Matches(&model.Task{ID: "b", DueDate: &outside}))
	assert.False(t, q.Filter.Matches(&model.Task{ID: "c"}))

	_, err = Build(p, Params{DueFrom: "2026-05-03", DueTo: "2026-05-01"})
	require.Error(t, err)
}

func TestCriteriaSearch(t *testing.T) {
	c := Criteria{Search: "REPORT"}
	assert.True(t, c.Matches(&model.Task{Title: "Quarterly report"}))
	assert.True(t, c.Matches(&model.Task{Title: "x", Description: "attach the report"}))
	assert.False(t, c.Matches(&model.Task{Title: "Budget"}))
}

func TestFilterWithDoesNotOverride(t *testing.T) {
	f := Filter{Scope: TeamOf("Sales"), Criteria: Criteria{AssigneeID: "u1"}}
	g := f.With(Criteria{AssigneeID: "u2", Status: model.StatusTodo})
	assert.Equal(t, "u1", g.Criteria.AssigneeID)
	assert.Equal(t, model.StatusTodo, g.Criteria.Status)
	assert.Equal(t, TeamOf("Sales"), g.Scope)
}

func TestSortLess(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d1, d2 := base.Add(time.Hour), base.Add(2*time.Hour)
	tasks := []*model.Task{
		{ID: "a", Priority: model.PriorityLow, CreatedAt: base, DueDate: &d2},
		{ID: "b", Priority: model.PriorityHigh, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Priority: model.PriorityMedium, CreatedAt: base.Add(2 * time.Minute), DueDate: &d1},
	}
	ids := func(s Sort) []string {
		cp := slices.Clone(tasks)
		slices.SortFunc(cp, func(x, y *model.Task) int {
			if s.Less(x, y) {
				return -1
			}
			if s.Less(y, x) {
				return 1
			}
			return 0
		})
		out := make([]string, len(cp))
		for i, t := range cp {
			out[i] = t.ID
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a"}, ids(DefaultSort()))
	assert.Equal(t, []string{"b", "c", "a"}, ids(Sort{Field: SortPriority, Desc: true}))
	assert.Equal(t, []string{"c", "a", "b"}, ids(Sort{Field: SortDueDate}))
	assert.Equal(t, []string{"a", "c", "b"}, ids(Sort{Field: SortDueDate, Desc: true}))
}

func TestFingerprint(t *testing.T) {
	p := model.Principal{ID: "u", Role: role.User}
	a, _ := Build(p, Params{Status: "todo", Page: "2"})
	b, _ := Build(p, Params{Status: "TODO", Page: "2"})
	c, _ := Build(p, Params{Status: "todo", Page: "3"})
	d, _ := Build(model.Principal{ID: "v", Role: role.User}, Params{Status: "todo", Page: "2"})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestBuildUsers(t *testing.T) {
	admin := model.Principal{ID: "a", Role: role.Admin}
	mgr := model.Principal{ID: "m", Role: role.Manager, Team: "Sales"}
	user := model.Principal{ID: "u", Role: role.User, Team: "Sales"}

	sales := &model.User{ID: "s1", Role: role.User, Team: "Sales", Name: "Sam", Email: "sam@example.com"}
	ops := &model.User{ID: "o1", Role: role.User, Team: "Ops", Name: "Olga", Email: "olga@example.com"}
	self := &model.User{ID: "u", Role: role.User, Team: "Sales"}

	q, err := BuildUsers(admin, UserParams{})
	require.NoError(t, err)
	assert.True(t, q.Filter.Matches(sales))
	assert.True(t, q.Filter.Matches(ops))

	q, err = BuildUsers(mgr, UserParams{Search: "SAM"})
	require.NoError(t, err)
	assert.True(t, q.Filter.Matches(sales))
	assert.False(t, q.Filter.Matches(ops))

	q, err = BuildUsers(user, UserParams{})
	require.NoError(t, err)
	assert.True(t, q.Filter.Matches(self))
	assert.False(t, q.Filter.Matches(sales))

	_, err = BuildUsers(admin, UserParams{Role: "owner"})
	require.Error(t, err)
}
