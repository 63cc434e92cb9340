package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
)

type requestRepository struct {
	db *DB
}

var _ subscription.Repository = (*requestRepository)(nil)

func NewRequestRepository(db *DB) subscription.Repository {
	return &requestRepository{db: db}
}

func (repo *requestRepository) CreateRequest(
	_ context.Context,
	req subscription.Request,
	_ ...core.DBExecutor,
) (subscription.Request, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if req.IsPending() {
		for _, r := range repo.db.requests {
			if r.UserID == req.UserID && r.IsPending() {
				return subscription.Request{}, subscription.ErrRequestPending
			}
		}
	}
	req.ID = uuid.New().String()
	req.User = nil
	repo.db.requests[req.ID] = req
	return req, nil
}

func (repo *requestRepository) GetRequest(_ context.Context, id string, _ ...core.DBExecutor) (subscription.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	req, ok := repo.db.requests[id]
	if !ok {
		return subscription.Request{}, subscription.ErrNotFound
	}
	req.User = repo.db.requester(req.UserID)
	return req, nil
}

func (repo *requestRepository) QueryRequests(
	_ context.Context,
	filter subscription.QueryFilter,
	_ ...core.DBExecutor,
) ([]subscription.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]subscription.Request, 0)
	for _, r := range repo.db.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		r.User = repo.db.requester(r.UserID)
		reqs = append(reqs, r)
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *requestRepository) ReviewRequest(
	_ context.Context,
	req subscription.Request,
	_ ...core.DBExecutor,
) (subscription.Request, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.requests[req.ID]
	if !ok || !stored.IsPending() {
		return subscription.Request{}, subscription.ErrAlreadyReviewed
	}
	stored.Status = req.Status
	stored.AdminNote = req.AdminNote
	stored.ReviewedAt = req.ReviewedAt
	stored.ReviewedBy = req.ReviewedBy
	stored.UpdatedAt = req.UpdatedAt
	repo.db.requests[req.ID] = stored
	return req, nil
}
