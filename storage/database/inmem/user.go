package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email, exceptID string) bool {
	for _, u := range repo.db.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(
	_ context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]user.Summary, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range repo.db.requests {
		counts[r.UserID]++
	}

	res := make([]user.Summary, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil && !matchUser(u, filter) {
			continue
		}
		res = append(res, user.Summary{User: u, RequestCount: counts[u.ID]})
	}
	sortUsers(res, ordering)
	return res, nil
}

func matchUser(u user.User, f *user.QueryFilter) bool {
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(u.Email, s) && !strings.Contains(strings.ToLower(u.Phone), s) {
			return false
		}
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.IsPro != nil && u.IsPro != *f.IsPro {
		return false
	}
	if !f.CreatedFrom.IsZero() && u.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && u.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

// sortUsers applies the first known ordering, newest first by default.
func sortUsers(users []user.Summary, ordering []core.DBOrdering) {
	ord := core.DBOrdering{Field: "created_at"}
	for _, o := range ordering {
		if _, ok := user.OrderingFields[o.Field]; ok {
			ord = o
			break
		}
	}
	less := func(a, b user.Summary) bool {
		switch ord.Field {
		case "email":
			return a.Email < b.Email
		case "role":
			return a.Role < b.Role
		case "is_pro":
			return !a.IsPro && b.IsPro
		case "request_count":
			return a.RequestCount < b.RequestCount
		case "last_login":
			return a.LastLogin == nil && b.LastLogin != nil ||
				a.LastLogin != nil && b.LastLogin != nil && a.LastLogin.Before(*b.LastLogin)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		if ord.Ascending {
			return less(users[i], users[j])
		}
		return less(users[j], users[i])
	})
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) SetPro(_ context.Context, id string, isPro bool, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.IsPro = isPro
	usr.UpdatedAt = core.NowFunc()
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) CreateResetToken(_ context.Context, tok user.ResetToken, _ ...core.DBExecutor) (user.ResetToken, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tok.ID = uuid.New().String()
	repo.db.resetTokens[tok.ID] = tok
	return tok, nil
}

func (repo *userRepository) GetResetToken(_ context.Context, token string, _ ...core.DBExecutor) (user.ResetToken, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, tok := range repo.db.resetTokens {
		if tok.Token == token {
			return tok, nil
		}
	}
	return user.ResetToken{}, user.ErrInvalidResetToken
}

func (repo *userRepository) LatestResetToken(_ context.Context, userID string, _ ...core.DBExecutor) (user.ResetToken, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var (
		latest user.ResetToken
		found  bool
	)
	for _, tok := range repo.db.resetTokens {
		if tok.UserID == userID && (!found || tok.CreatedAt.After(latest.CreatedAt)) {
			latest, found = tok, true
		}
	}
	if !found {
		return user.ResetToken{}, user.ErrInvalidResetToken
	}
	return latest, nil
}

func (repo *userRepository) DeleteResetTokens(_ context.Context, userID string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, tok := range repo.db.resetTokens {
		if tok.UserID == userID {
			delete(repo.db.resetTokens, id)
		}
	}
	return nil
}

// requester is the Requester of a request, read under the db lock.
func (db *DB) requester(userID string) *subscription.Requester {
	u, ok := db.users[userID]
	if !ok {
		return nil
	}
	return &subscription.Requester{ID: u.ID, Email: u.Email, Phone: u.Phone, IsPro: u.IsPro}
}
