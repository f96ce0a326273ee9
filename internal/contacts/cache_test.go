package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-premerge/internal/zendesk"
)

type fakeUsers struct {
	calls map[int64]int
	users map[int64]zendesk.UserRecord
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (*zendesk.UserRecord, error) {
	f.calls[id]++
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("boom")
	}
	return &user, nil
}

func strPtr(s string) *string { return &s }

func TestCache_FetchesOncePerRequester(t *testing.T) {
	users := &fakeUsers{
		calls: map[int64]int{},
		users: map[int64]zendesk.UserRecord{
			1: {ID: 1, Email: strPtr(" Ana@Example.com "), Phone: strPtr(" 555 ")},
		},
	}
	cache := NewCache(users, nil)

	first := cache.Lookup(context.Background(), 1)
	second := cache.Lookup(context.Background(), 1)

	assert.Equal(t, first, second)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.Equal(t, "555", first.Phone)
	assert.Equal(t, int64(1), first.RequesterID)
	assert.Equal(t, 1, users.calls[1])
	assert.Equal(t, 1, cache.Size())
}

func TestCache_FailureCachedAsEmpty(t *testing.T) {
	users := &fakeUsers{calls: map[int64]int{}, users: map[int64]zendesk.UserRecord{}}
	cache := NewCache(users, nil)

	contact := cache.Lookup(context.Background(), 9)
	again := cache.Lookup(context.Background(), 9)

	assert.True(t, contact.IsEmpty())
	assert.Equal(t, contact, again)
	assert.Equal(t, 1, users.calls[9])
	assert.Equal(t, 1, cache.Failures())
}

func TestCache_ZeroRequesterSkipsFetch(t *testing.T) {
	users := &fakeUsers{calls: map[int64]int{}, users: map[int64]zendesk.UserRecord{}}
	cache := NewCache(users, nil)

	assert.True(t, cache.Lookup(context.Background(), 0).IsEmpty())
	assert.Empty(t, users.calls)
	assert.Equal(t, 0, cache.Size())
}
