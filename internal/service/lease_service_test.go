package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/events"
	"leasemarket/internal/lease"
	"leasemarket/internal/models"
	"leasemarket/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, resourceID int64, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, resourceID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

// conflictRepo simulates a contract written by another process between check and save.
type conflictRepo struct {
	*repository.MemoryRepository
}

func (r conflictRepo) SaveContract(ctx context.Context, c *models.Contract) error {
	return fmt.Errorf("resource %d: %w", c.Resource.ID, domain.ErrConflict)
}

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]string, len(r.events))
	for i, e := range r.events {
		res[i] = e.Type
	}
	return res
}

func seededRepo() *repository.MemoryRepository {
	repo := repository.NewMemoryRepository()
	repo.PutRequester(models.Requester{ID: 1, Name: "Mister Bob"})
	repo.PutRequester(models.Requester{ID: 2, Name: "Sir Stinky", IsVIP: true})
	repo.PutResource(models.Resource{ID: 1, Name: "Ugly Fred", HourlyRate: 20})
	return repo
}

func newTestService(repo domain.Repository, locker domain.ResourceLocker) (*LeaseService, *recorder) {
	bus := events.NewEventBus()
	rec := &recorder{}
	bus.Subscribe(events.EventContractCreated, rec.handle)
	bus.Subscribe(events.EventLeaseRejected, rec.handle)
	logger := zerolog.New(io.Discard)
	return NewLeaseService(repo, locker, bus, 0, time.Second, &logger), rec
}

func TestLeaseService_Lease(t *testing.T) {
	ctx := context.Background()

	t.Run("GrantedContractIsStored", func(t *testing.T) {
		repo := seededRepo()
		svc, rec := newTestService(repo, repository.NewMemoryResourceLocker())

		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-01 00:00", TimeTo: "2017-01-01 03:00"})
		require.NoError(t, err)
		require.True(t, resp.OK())
		assert.NotZero(t, resp.Contract.ID)
		assert.Equal(t, 80.0, resp.Contract.Price)

		stored, err := svc.Contracts(ctx, 1, "2017-01-01", "2017-01-01")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, resp.Contract.ID, stored[0].ID)

		require.Equal(t, []string{events.EventContractCreated}, rec.types())
		var payload events.ContractEventPayload
		require.NoError(t, json.Unmarshal(rec.events[0].Payload, &payload))
		assert.Equal(t, "Ugly Fred", payload.ResourceName)
		assert.Equal(t, []string{"2017-01-01 00", "2017-01-01 01", "2017-01-01 02", "2017-01-01 03"}, payload.Hours)
	})

	t.Run("SecondRegularRequestIsBusy", func(t *testing.T) {
		repo := seededRepo()
		svc, rec := newTestService(repo, repository.NewMemoryResourceLocker())

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-01 00:00", TimeTo: "2017-01-01 03:00"})
		require.NoError(t, err)

		repo.PutRequester(models.Requester{ID: 2, Name: "Sir Stinky"})
		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 2, ResourceID: 1, TimeFrom: "2017-01-01 01:30:00", TimeTo: "2017-01-01 02:01:00"})
		require.NoError(t, err)
		assert.Nil(t, resp.Contract)
		assert.Equal(t, []string{`Resource #1 "Ugly Fred" is busy. Busy hours: 2017-01-01 01, 2017-01-01 02`}, resp.Errors)
		assert.Equal(t, []string{events.EventContractCreated, events.EventLeaseRejected}, rec.types())
	})

	t.Run("VIPOverridesRegular", func(t *testing.T) {
		repo := seededRepo()
		svc, _ := newTestService(repo, repository.NewMemoryResourceLocker())

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-01 00:00", TimeTo: "2017-01-01 03:00"})
		require.NoError(t, err)

		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 2, ResourceID: 1, TimeFrom: "2017-01-01 01:30:00", TimeTo: "2017-01-01 02:01:00"})
		require.NoError(t, err)
		require.True(t, resp.OK())
		assert.Equal(t, 40.0, resp.Contract.Price)
	})

	t.Run("DailyCapIsRejection", func(t *testing.T) {
		svc, rec := newTestService(seededRepo(), nil)

		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 00:00", TimeTo: "2017-01-02 16:00"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Resources cannot work more than 16 hours per day."}, resp.Errors)
		assert.Equal(t, []string{events.EventLeaseRejected}, rec.types())
	})

	t.Run("InvalidRangeIsError", func(t *testing.T) {
		svc, rec := newTestService(seededRepo(), nil)

		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 05:00"})
		assert.Nil(t, resp)
		var invalid *lease.InvalidRangeError
		assert.True(t, errors.As(err, &invalid))
		assert.Empty(t, rec.types())
	})

	t.Run("InvalidRangeSkipsLock", func(t *testing.T) {
		locker := new(mockLocker)
		svc, _ := newTestService(seededRepo(), locker)

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 07:00", TimeTo: "2017-01-02 05:00"})
		var invalid *lease.InvalidRangeError
		require.True(t, errors.As(err, &invalid))
		locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownRequester", func(t *testing.T) {
		svc, _ := newTestService(seededRepo(), nil)

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 9, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 06:00"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("LockedResource", func(t *testing.T) {
		locker := new(mockLocker)
		locker.On("Acquire", ctx, int64(1), time.Second).Return(nil, domain.ErrLocked).Once()
		svc, _ := newTestService(seededRepo(), locker)

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 06:00"})
		assert.ErrorIs(t, err, domain.ErrLocked)
		locker.AssertExpectations(t)
	})

	t.Run("LockerFailure", func(t *testing.T) {
		locker := new(mockLocker)
		locker.On("Acquire", ctx, int64(1), time.Second).Return(nil, errors.New("redis down")).Once()
		svc, _ := newTestService(seededRepo(), locker)

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 06:00"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrLocked)
	})

	t.Run("LockReleasedAfterLease", func(t *testing.T) {
		released := false
		release := func(context.Context) error {
			released = true
			return nil
		}
		locker := new(mockLocker)
		locker.On("Acquire", ctx, int64(1), time.Second).Return(release, nil).Once()
		svc, _ := newTestService(seededRepo(), locker)

		_, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 06:00"})
		require.NoError(t, err)
		assert.True(t, released)
	})

	t.Run("ConflictOnSave", func(t *testing.T) {
		svc, rec := newTestService(conflictRepo{seededRepo()}, nil)

		resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-01-02 05:00", TimeTo: "2017-01-02 06:00"})
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, []string{events.EventLeaseRejected}, rec.types())
	})
}

func TestLeaseService_ConcurrentRequests(t *testing.T) {
	repo := seededRepo()
	svc, _ := newTestService(repo, repository.NewMemoryResourceLocker())
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Lease(ctx, models.LeaseRequest{RequesterID: 1, ResourceID: 1, TimeFrom: "2017-02-01 10:00", TimeTo: "2017-02-01 12:00"})
			if err == nil && resp.OK() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	stored, err := repo.GetForResource(ctx, 1, "2017-02-01", "2017-02-01")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLeaseService_ReadAPIs(t *testing.T) {
	svc, _ := newTestService(seededRepo(), nil)
	ctx := context.Background()

	list, err := svc.Resources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	res, err := svc.Resource(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ugly Fred", res.Name)

	_, err = svc.Contracts(ctx, 5, "2017-01-01", "2017-01-01")
	var nf *lease.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
