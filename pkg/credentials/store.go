package credentials

import (
	"sort"
)

// AuthorizationStatus is the outcome of looking a chat up in a Store.
type AuthorizationStatus int

const (
	Unauthorized AuthorizationStatus = iota
	Authorized
)

func (s AuthorizationStatus) String() string {
	if s == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// Authorization is the result of Store.Lookup. Credential is only set when
// Status is Authorized.
type Authorization struct {
	Status     AuthorizationStatus
	Credential Credential
}

// Store maps chat ids to credentials. It is immutable after construction and
// safe for concurrent use without locking.
type Store struct {
	chats map[int64]Credential
}

// NewStore builds a Store from a copy of chats.
func NewStore(chats map[int64]Credential) *Store {
	copied := make(map[int64]Credential, len(chats))
	for id, cred := range chats {
		copied[id] = cred
	}
	return &Store{chats: copied}
}

// Lookup never fails: a chat without credentials is Unauthorized.
func (s *Store) Lookup(chatID int64) Authorization {
	if s == nil {
		return Authorization{Status: Unauthorized}
	}
	cred, ok := s.chats[chatID]
	if !ok {
		return Authorization{Status: Unauthorized}
	}
	return Authorization{Status: Authorized, Credential: cred}
}

// Len returns the number of authorized chats.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.chats)
}

// ChatIDs returns the authorized chat ids in ascending order.
func (s *Store) ChatIDs() []int64 {
	if s == nil {
		return nil
	}
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
