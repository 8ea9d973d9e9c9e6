package console

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/listing"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

func TestAttachAndFilterCommands(t *testing.T) {
	s := NewStore()

	change, err := s.Dispatch(AttachView{View: "users-main", Kind: listing.KindUsers})
	require.NoError(t, err)
	assert.True(t, change.Refetch)
	assert.Equal(t, "desc", change.View.Filter.Sort)

	change, err = s.Dispatch(SetSearch{View: "users-main", Value: " ivan "}, SetRole{View: "users-main", Value: "admin"})
	require.NoError(t, err)
	assert.True(t, change.Refetch)
	assert.Equal(t, listing.FilterState{Search: "ivan", Role: "admin", Sort: "desc"}, change.View.Filter)

	change, err = s.Dispatch(SetSearch{View: "users-main", Value: "ivan"})
	require.NoError(t, err)
	assert.False(t, change.Refetch)
}

func TestRejectedCommandLeavesStateUntouched(t *testing.T) {
	s := NewStore()
	_, err := s.Dispatch(AttachView{View: "v", Kind: listing.KindUsers})
	require.NoError(t, err)

	_, err = s.Dispatch(SetSearch{View: "v", Value: "x"}, SetGender{View: "v", Value: "M"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	v, ok := s.View("v")
	require.True(t, ok)
	assert.Empty(t, v.Filter.Search)
}

func TestCommandsNeedAttachedView(t *testing.T) {
	s := NewStore()
	_, err := s.Dispatch(SetSearch{View: "ghost", Value: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = s.Dispatch(AttachView{View: "v", Kind: "grades"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = s.Dispatch(AttachView{View: "a", Kind: listing.KindUsers}, SetSort{View: "b", Value: "asc"})
	assert.Error(t, err)
}

func TestSelection(t *testing.T) {
	s := NewStore()
	change, err := s.Dispatch(AttachView{View: "v", Kind: listing.KindEmployees}, SelectEntity{View: "v", ID: 12})
	require.NoError(t, err)
	require.NotNil(t, change.View.Selected)
	assert.EqualValues(t, 12, *change.View.Selected)

	*change.View.Selected = 99
	v, _ := s.View("v")
	assert.EqualValues(t, 12, *v.Selected)

	_, err = s.Dispatch(SelectEntity{View: "v", ID: 0})
	assert.Error(t, err)

	change, err = s.Dispatch(ClearSelection{View: "v"})
	require.NoError(t, err)
	assert.Nil(t, change.View.Selected)
	assert.False(t, change.Refetch)

	_, _ = s.Dispatch(SelectEntity{View: "v", ID: 3})
	change, err = s.Dispatch(AttachView{View: "v", Kind: listing.KindUsers})
	require.NoError(t, err)
	assert.Nil(t, change.View.Selected)
	assert.Equal(t, "desc", change.View.Filter.Sort)
}

func TestDeselectDropsRemovedEntity(t *testing.T) {
	s := NewStore()
	for _, cmd := range []Command{
		AttachView{View: "staff", Kind: listing.KindEmployees},
		AttachView{View: "tab2", Kind: listing.KindEmployees},
		AttachView{View: "other", Kind: listing.KindEmployees},
		AttachView{View: "admins", Kind: listing.KindUsers},
	} {
		_, err := s.Dispatch(cmd)
		require.NoError(t, err)
	}
	for view, id := range map[string]int64{"staff": 7, "tab2": 7, "other": 8, "admins": 7} {
		_, err := s.Dispatch(SelectEntity{View: view, ID: id})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"staff", "tab2"}, s.Deselect(listing.KindEmployees, 7))
	v, _ := s.View("staff")
	assert.Nil(t, v.Selected)
	v, _ = s.View("other")
	assert.Equal(t, int64(8), *v.Selected)
	v, _ = s.View("admins")
	assert.Equal(t, int64(7), *v.Selected)
	assert.Empty(t, s.Deselect(listing.KindEmployees, 7))
}

func TestViewsOf(t *testing.T) {
	s := NewStore()
	_, _ = s.Dispatch(AttachView{View: "a", Kind: listing.KindEmployees}, SetGender{View: "a", Value: "F"})
	_, _ = s.Dispatch(AttachView{View: "b", Kind: listing.KindUsers})

	assert.Equal(t, map[string]listing.FilterState{"a": {Gender: "F", Sort: "asc"}}, s.ViewsOf(listing.KindEmployees))
	assert.True(t, s.Forget("a"))
	assert.Empty(t, s.ViewsOf(listing.KindEmployees))
	assert.False(t, s.Forget("a"))
	_, ok := s.View("b")
	assert.True(t, ok)
}

func TestConcurrentCommandsAreSerialized(t *testing.T) {
	s := NewStore()
	_, err := s.Dispatch(AttachView{View: "v", Kind: listing.KindUsers})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = s.Dispatch(SelectEntity{View: "v", ID: id})
		}(int64(i))
	}
	wg.Wait()

	v, _ := s.View("v")
	require.NotNil(t, v.Selected)
	assert.True(t, *v.Selected >= 1 && *v.Selected <= 50)
}
