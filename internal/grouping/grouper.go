package grouping

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// ContactLookup resolves a requester to normalized contact data.
type ContactLookup interface {
	Lookup(ctx context.Context, requesterID int64) domain.Contact
}

// Grouper buckets tickets by identity key and day.
type Grouper struct {
	contacts       ContactLookup
	vehicleFieldID int64
	location       *time.Location
	logger         *zap.Logger
}

func NewGrouper(contacts ContactLookup, vehicleFieldID int64, location *time.Location, logger *zap.Logger) *Grouper {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grouper{
		contacts:       contacts,
		vehicleFieldID: vehicleFieldID,
		location:       location,
		logger:         logger,
	}
}

// bucket accumulates members of one key in ticket order.
type bucket struct {
	criterion domain.Criterion
	members   []domain.Ticket
}

// keySpace keeps buckets of one key type in first-appearance order.
type keySpace struct {
	order   []string
	buckets map[string]*bucket
}

func newKeySpace() *keySpace {
	return &keySpace{buckets: make(map[string]*bucket)}
}

func (k *keySpace) add(criterion domain.Criterion, ticket domain.Ticket) {
	key := criterion.String()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{criterion: criterion}
		k.buckets[key] = b
		k.order = append(k.order, key)
	}
	b.members = append(b.members, ticket)
}

// Group returns candidate groups in emission order: vehicle id keys first,
// then email, then phone. Within a key type, keys follow the order in which
// they first appear in tickets. A group whose signature was already emitted
// is dropped.
func (g *Grouper) Group(ctx context.Context, tickets []domain.Ticket) []domain.CandidateGroup {
	spaces := map[domain.KeyType]*keySpace{
		domain.KeyTypeVehicleID: newKeySpace(),
		domain.KeyTypeEmail:     newKeySpace(),
		domain.KeyTypePhone:     newKeySpace(),
	}

	for _, ticket := range tickets {
		day := ticket.Day(g.location)

		if vehicle := ticket.Field(g.vehicleFieldID); vehicle != "" {
			spaces[domain.KeyTypeVehicleID].add(domain.Criterion{KeyType: domain.KeyTypeVehicleID, Value: vehicle, Day: day}, ticket)
		}

		contact := g.contacts.Lookup(ctx, ticket.RequesterID)
		if email := domain.NormalizeKey(contact.Email); email != "" {
			spaces[domain.KeyTypeEmail].add(domain.Criterion{KeyType: domain.KeyTypeEmail, Value: email, Day: day}, ticket)
		}
		if phone := domain.NormalizeKey(contact.Phone); phone != "" {
			spaces[domain.KeyTypePhone].add(domain.Criterion{KeyType: domain.KeyTypePhone, Value: phone, Day: day}, ticket)
		}
	}

	var groups []domain.CandidateGroup
	emitted := make(map[domain.Signature]domain.Criterion)
	for _, keyType := range domain.KeyTypePriority {
		space := spaces[keyType]
		for _, key := range space.order {
			b := space.buckets[key]
			if len(b.members) < 2 {
				continue
			}
			signature := domain.SignatureOf(b.members)
			if first, dup := emitted[signature]; dup {
				g.logger.Debug("dropping duplicate group",
					zap.String("criterion", b.criterion.String()),
					zap.String("kept", first.String()),
					zap.String("signature", string(signature)))
				continue
			}
			emitted[signature] = b.criterion
			groups = append(groups, domain.CandidateGroup{
				Criterion: b.criterion,
				Members:   b.members,
				Signature: signature,
			})
		}
	}

	g.logger.Info("candidate groups built", zap.Int("tickets", len(tickets)), zap.Int("groups", len(groups)))
	return groups
}
