package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, 3, Level(Admin))
	assert.Equal(t, 2, Level(Manager))
	assert.Equal(t, 1, Level(User))
	assert.Equal(t, 1, Level(Role("superuser")))
	assert.Equal(t, 1, Level(Role("")))
}

func TestAtLeast(t *testing.T) {
	cases := []struct {
		r, threshold Role
		want         bool
	}{
		{Admin, Admin, true},
		{Admin, Manager, true},
		{Admin, User, true},
		{Manager, Admin, false},
		{Manager, Manager, true},
		{Manager, User, true},
		{User, Manager, false},
		{User, User, true},
		{Role("root"), Manager, false},
		{Role("root"), User, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.r)+">="+string(tc.threshold), func(t *testing.T) {
			assert.Equal(t, tc.want, AtLeast(tc.r, tc.threshold))
		})
	}
}

func TestParse(t *testing.T) {
	r, ok := Parse("  Manager ")
	assert.True(t, ok)
	assert.Equal(t, Manager, r)

	_, ok = Parse("owner")
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)
}

func TestAllIsOrderedHighestFirst(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		assert.Greater(t, Level(all[i-1]), Level(all[i]))
	}
}
