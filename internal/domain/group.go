package domain

import (
	"sort"
	"strconv"
	"strings"
)

// KeyType identifies the identity key a candidate group was built from.
type KeyType string

const (
	KeyTypeVehicleID KeyType = "vehicle_id"
	KeyTypeEmail     KeyType = "email"
	KeyTypePhone     KeyType = "phone"
)

// KeyTypePriority is the order in which key spaces are emitted. A group
// whose membership was already emitted under an earlier key type is dropped.
var KeyTypePriority = []KeyType{KeyTypeVehicleID, KeyTypeEmail, KeyTypePhone}

// ParseKeyType validates a key type name.
func ParseKeyType(value string) (KeyType, bool) {
	kt := KeyType(NormalizeKey(value))
	for _, known := range KeyTypePriority {
		if kt == known {
			return kt, true
		}
	}
	return "", false
}

// Criterion is the bucket a group was keyed on.
type Criterion struct {
	KeyType KeyType
	Value   string
	Day     string
}

func (c Criterion) String() string {
	return string(c.KeyType) + ":" + c.Value + "|" + c.Day
}

// Signature is the sorted, unique list of member ticket ids.
type Signature string

// SignatureOf computes the canonical signature of a set of tickets.
func SignatureOf(tickets []Ticket) Signature {
	ids := make([]int64, 0, len(tickets))
	seen := make(map[int64]struct{}, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return Signature(strings.Join(parts, ","))
}

// CandidateGroup is a set of tickets that share one identity key on one day.
type CandidateGroup struct {
	Criterion Criterion
	Members   []Ticket
	Signature Signature
}

// IDs returns member ids in member order.
func (g CandidateGroup) IDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, t := range g.Members {
		ids[i] = t.ID
	}
	return ids
}
