package memory

import (
	"context"
	"sort"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.AddressStore = (*Store)(nil)

func (s *Store) ListAddresses(ctx context.Context, userID string) ([]*domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Address
	for _, a := range s.addresses {
		if a.UserID == userID {
			out = append(out, copyAddress(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetAddress(ctx context.Context, userID, id string) (*domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.addresses[id]
	if !ok || a.UserID != userID {
		return nil, domain.AddressNotFound("address.get", id)
	}
	return copyAddress(a), nil
}

func (s *Store) SaveAddress(ctx context.Context, a *domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if a.ID == "" {
		a.ID = newID()
		a.CreatedAt = now
	} else {
		existing, ok := s.addresses[a.ID]
		if !ok || existing.UserID != a.UserID {
			return domain.AddressNotFound("address.save", a.ID)
		}
		a.CreatedAt = existing.CreatedAt
	}
	a.UpdatedAt = now

	if a.IsDefault {
		for _, other := range s.addresses {
			if other.UserID == a.UserID && other.ID != a.ID && other.IsDefault {
				other.IsDefault = false
				other.UpdatedAt = now
			}
		}
	}
	s.addresses[a.ID] = copyAddress(a)
	return nil
}

func (s *Store) DeleteAddress(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.addresses[id]
	if !ok || a.UserID != userID {
		return domain.AddressNotFound("address.delete", id)
	}
	delete(s.addresses, id)
	return nil
}
