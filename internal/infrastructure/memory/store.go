package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type state struct {
	users     map[string]domain.User
	groups    map[string]domain.Group
	members   map[string]map[string]struct{}
	grants    map[domain.Grant]struct{}
	companies map[string]domain.Company

	sales        map[string]domain.Sale
	purchases    map[string]domain.Purchase
	bookings     map[string]domain.Booking
	bookingTypes map[string]domain.BookingType
	media        map[string]domain.Media
}

func newState() *state {
	return &state{
		users:        make(map[string]domain.User),
		groups:       make(map[string]domain.Group),
		members:      make(map[string]map[string]struct{}),
		grants:       make(map[domain.Grant]struct{}),
		companies:    make(map[string]domain.Company),
		sales:        make(map[string]domain.Sale),
		purchases:    make(map[string]domain.Purchase),
		bookings:     make(map[string]domain.Booking),
		bookingTypes: make(map[string]domain.BookingType),
		media:        make(map[string]domain.Media),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:        maps.Clone(s.users),
		groups:       maps.Clone(s.groups),
		members:      make(map[string]map[string]struct{}, len(s.members)),
		grants:       maps.Clone(s.grants),
		companies:    maps.Clone(s.companies),
		sales:        maps.Clone(s.sales),
		purchases:    maps.Clone(s.purchases),
		bookings:     maps.Clone(s.bookings),
		bookingTypes: maps.Clone(s.bookingTypes),
		media:        maps.Clone(s.media),
	}
	for g, m := range s.members {
		c.members[g] = maps.Clone(m)
	}
	return c
}

// Store keeps everything in process memory. Transactions are serialized and rolled
// back by restoring a snapshot, so writes made outside WithinTx while a transaction
// is running are lost if it fails.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Users:        &userRepo{s: s},
		Groups:       &groupRepo{s: s},
		Grants:       &grantRepo{s: s},
		Companies:    &companyRepo{s: s},
		Sales:        &recordRepo[domain.Sale]{s: s, table: func(st *state) map[string]domain.Sale { return st.sales }},
		Purchases:    &recordRepo[domain.Purchase]{s: s, table: func(st *state) map[string]domain.Purchase { return st.purchases }},
		Bookings:     &recordRepo[domain.Booking]{s: s, table: func(st *state) map[string]domain.Booking { return st.bookings }},
		BookingTypes: &recordRepo[domain.BookingType]{s: s, table: func(st *state) map[string]domain.BookingType { return st.bookingTypes }},
		Media:        &recordRepo[domain.Media]{s: s, table: func(st *state) map[string]domain.Media { return st.media }},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.Repositories()); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return ctx.Err()
}

func (s *Store) ListIDs(_ context.Context, entity domain.EntityType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch entity {
	case domain.EntityUser:
		return sortedKeys(s.st.users), nil
	case domain.EntityGroup:
		return sortedKeys(s.st.groups), nil
	case domain.EntityCompany:
		return sortedKeys(s.st.companies), nil
	case domain.EntitySale:
		return sortedKeys(s.st.sales), nil
	case domain.EntityPurchase:
		return sortedKeys(s.st.purchases), nil
	case domain.EntityBooking:
		return sortedKeys(s.st.bookings), nil
	case domain.EntityBookingType:
		return sortedKeys(s.st.bookingTypes), nil
	case domain.EntityMedia:
		return sortedKeys(s.st.media), nil
	}
	return nil, fmt.Errorf("%w: unknown entity %q", domain.ErrInvalidInput, entity)
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}
