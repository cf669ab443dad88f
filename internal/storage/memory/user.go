package memory

import (
	"context"

	"github.com/xenking/shopsim/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository.
type UserRepository struct {
	s *Store
}

// Create stores u and assigns its id. Emails are unique.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return user.ErrEmailTaken
			}
		}
		st.nextUser++
		u.ID = st.nextUser
		st.users[u.ID] = *u
		return nil
	})
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var out user.User
	err := r.s.read(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return user.ErrNotFound
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByEmail returns the user with the given normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var out user.User
	err := r.s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return user.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
