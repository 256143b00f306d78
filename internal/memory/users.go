package memory

import (
	"context"
	"sort"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.UserStore = (*Store)(nil)

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user.get", "user", id)
	}
	return copyUser(u), nil
}

func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, existing := range s.users {
		if existing.ExternalID == u.ExternalID {
			u.ID = existing.ID
			u.CreatedAt = existing.CreatedAt
			u.UpdatedAt = now
			if existing.FirstName != "" {
				u.FirstName = existing.FirstName
			}
			if existing.LastName != "" {
				u.LastName = existing.LastName
			}
			s.users[u.ID] = copyUser(u)
			return nil
		}
	}

	u.ID = newID()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, firstName, lastName string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user.update", "user", id)
	}
	u.FirstName, u.LastName = firstName, lastName
	u.UpdatedAt = s.now()
	return copyUser(u), nil
}

func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)

	out := make([]*domain.User, 0, end-start)
	for _, u := range all[start:end] {
		out = append(out, copyUser(u))
	}
	return out, total, nil
}
