package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/lease"
	"leasemarket/internal/models"
)

// MemoryRepository keeps requesters, resources and contracts in process.
type MemoryRepository struct {
	mu         sync.RWMutex
	requesters map[int64]models.Requester
	resources  map[int64]models.Resource
	contracts  []models.Contract
	nextID     int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requesters: make(map[int64]models.Requester),
		resources:  make(map[int64]models.Resource),
	}
}

func (r *MemoryRepository) PutRequester(req models.Requester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requesters[req.ID] = req
}

func (r *MemoryRepository) PutResource(res models.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.ID] = res
}

func (r *MemoryRepository) GetRequester(ctx context.Context, id int64) (*models.Requester, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requesters[id]
	if !ok {
		return nil, fmt.Errorf("requester %d: %w", id, domain.ErrNotFound)
	}
	return &req, nil
}

func (r *MemoryRepository) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[id]
	if !ok {
		return nil, fmt.Errorf("resource %d: %w", id, domain.ErrNotFound)
	}
	return &res, nil
}

func (r *MemoryRepository) ListResources(ctx context.Context) ([]models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]models.Resource, 0, len(r.resources))
	for _, item := range r.resources {
		res = append(res, item)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// GetForResource returns copies of the contracts with at least one hour in [dayFrom, dayTo].
func (r *MemoryRepository) GetForResource(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []models.Contract
	for _, c := range r.contracts {
		if c.Resource.ID != resourceID {
			continue
		}
		overlaps := slices.ContainsFunc(c.Hours, func(h models.HourSlot) bool {
			day := h.Day()
			return day >= dayFrom && day <= dayTo
		})
		if overlaps {
			c.Hours = slices.Clone(c.Hours)
			res = append(res, c)
		}
	}
	return res, nil
}

// SaveContract stores the contract unless one of its hours was taken meanwhile.
func (r *MemoryRepository) SaveContract(ctx context.Context, contract *models.Contract) error {
	if contract == nil {
		return fmt.Errorf("contract is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing []models.Contract
	for _, c := range r.contracts {
		if c.Resource.ID == contract.Resource.ID {
			existing = append(existing, c)
		}
	}
	busy := lease.FindBusyHours(slices.Values(contract.Hours), lease.BuildOccupancy(existing), contract.Requester.IsVIP)
	if len(busy) > 0 {
		return fmt.Errorf("resource %d at %s: %w", contract.Resource.ID, busy[0], domain.ErrConflict)
	}

	r.nextID++
	contract.ID = r.nextID
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = time.Now()
	}
	stored := *contract
	stored.Hours = slices.Clone(contract.Hours)
	r.contracts = append(r.contracts, stored)
	return nil
}

type memoryLock struct {
	token     uint64
	expiresAt time.Time
}

// MemoryResourceLocker is a process-local ResourceLocker.
type MemoryResourceLocker struct {
	mu    sync.Mutex
	locks map[int64]memoryLock
	seq   uint64
}

func NewMemoryResourceLocker() *MemoryResourceLocker {
	return &MemoryResourceLocker{locks: make(map[int64]memoryLock)}
}

func (l *MemoryResourceLocker) Acquire(ctx context.Context, resourceID int64, ttl time.Duration) (func(context.Context) error, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[resourceID]; ok && now.Before(held.expiresAt) {
		return nil, fmt.Errorf("resource %d: %w", resourceID, domain.ErrLocked)
	}

	l.seq++
	token := l.seq
	l.locks[resourceID] = memoryLock{token: token, expiresAt: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.locks[resourceID]; ok && held.token == token {
			delete(l.locks, resourceID)
		}
		return nil
	}
	return release, nil
}
