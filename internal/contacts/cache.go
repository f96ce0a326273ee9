package contacts

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/domain"
	"github.com/spec-kit/ticket-premerge/internal/zendesk"
)

// UserReader fetches requester profiles.
type UserReader interface {
	GetUser(ctx context.Context, userID int64) (*zendesk.UserRecord, error)
}

// Cache memoizes requester contact data for the lifetime of one run. Each
// requester is fetched at most once; failed fetches are cached as empty
// contacts so a broken profile never aborts the run nor triggers retries.
//
// Cache is not safe for concurrent use; runs are sequential.
type Cache struct {
	users    UserReader
	logger   *zap.Logger
	entries  map[int64]domain.Contact
	failures int
}

// NewCache returns an empty cache.
func NewCache(users UserReader, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		users:   users,
		logger:  logger,
		entries: make(map[int64]domain.Contact),
	}
}

// Lookup returns the normalized contact of a requester. A zero requester id
// yields an empty contact without a remote call.
func (c *Cache) Lookup(ctx context.Context, requesterID int64) domain.Contact {
	if requesterID == 0 {
		return domain.Contact{}
	}
	if contact, ok := c.entries[requesterID]; ok {
		return contact
	}

	contact := domain.Contact{RequesterID: requesterID}
	user, err := c.users.GetUser(ctx, requesterID)
	if err != nil {
		c.failures++
		c.logger.Warn("requester lookup failed; treating as without contact data",
			zap.Int64("requester_id", requesterID),
			zap.Error(err))
	} else {
		contact = user.ToContact()
		contact.RequesterID = requesterID
	}

	c.entries[requesterID] = contact
	return contact
}

// Size returns the number of cached requesters.
func (c *Cache) Size() int {
	return len(c.entries)
}

// Failures returns how many lookups failed and were cached as empty.
func (c *Cache) Failures() int {
	return c.failures
}
