package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/events"
	"leasemarket/internal/lease"
	"leasemarket/internal/metrics"
	"leasemarket/internal/models"

	"github.com/rs/zerolog"
)

type LeaseService struct {
	repo      domain.Repository
	operation *lease.Operation
	locker    domain.ResourceLocker
	eventBus  domain.EventPublisher
	lockTTL   time.Duration
	logger    *zerolog.Logger
}

func NewLeaseService(repo domain.Repository, locker domain.ResourceLocker, eventBus domain.EventPublisher, maxDailyHours int, lockTTL time.Duration, logger *zerolog.Logger) *LeaseService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if lockTTL <= 0 {
		lockTTL = models.DefaultLockTTL * time.Second
	}
	return &LeaseService{
		repo:      repo,
		operation: lease.NewOperation(repo, repo, repo, lease.WithMaxDailyHours(maxDailyHours), lease.WithLogger(logger)),
		locker:    locker,
		eventBus:  eventBus,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Lease evaluates and, when granted, stores a contract. The resource is locked
// for the whole check-then-save sequence; SaveContract re-checks the hours in
// case the lock expired. Rejections are reported in the response, everything
// else as error.
func (s *LeaseService) Lease(ctx context.Context, req models.LeaseRequest) (*models.LeaseResponse, error) {
	// Ломаный диапазон не должен занимать блокировку.
	if _, err := lease.ExpandPeriod(req.TimeFrom, req.TimeTo); err != nil {
		s.observe(err, 0)
		return nil, err
	}

	release, err := s.acquire(ctx, req.ResourceID)
	if err != nil {
		s.observe(err, 0)
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Int64("resource_id", req.ResourceID).Msg("release resource lock")
		}
	}()

	contract, err := s.operation.Decide(ctx, req)
	if lease.IsRejection(err) {
		s.observe(err, 0)
		response := &models.LeaseResponse{}
		response.AddError(err.Error())
		s.publishRejected(req, response.Errors)
		return response, nil
	}
	if err != nil {
		s.observe(err, 0)
		return nil, err
	}

	if err := s.repo.SaveContract(ctx, contract); err != nil {
		s.observe(err, 0)
		if errors.Is(err, domain.ErrConflict) {
			s.publishRejected(req, []string{err.Error()})
			return nil, err
		}
		return nil, fmt.Errorf("save contract: %w", err)
	}

	s.observe(nil, contract.HourCount())
	s.publishCreated(contract)
	s.logger.Info().
		Int64("contract_id", contract.ID).
		Int64("requester_id", contract.Requester.ID).
		Int64("resource_id", contract.Resource.ID).
		Int("hours", contract.HourCount()).
		Float64("price", contract.Price).
		Msg("contract created")

	return &models.LeaseResponse{Contract: contract}, nil
}

func (s *LeaseService) Contracts(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error) {
	if _, err := s.Resource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.repo.GetForResource(ctx, resourceID, dayFrom, dayTo)
}

func (s *LeaseService) Resources(ctx context.Context) ([]models.Resource, error) {
	return s.repo.ListResources(ctx)
}

func (s *LeaseService) Resource(ctx context.Context, id int64) (*models.Resource, error) {
	res, err := s.repo.GetResource(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &lease.NotFoundError{Entity: "resource", ID: id, Err: err}
	}
	return res, err
}

func (s *LeaseService) acquire(ctx context.Context, resourceID int64) (func(context.Context) error, error) {
	if s.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	release, err := s.locker.Acquire(ctx, resourceID, s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("lock resource %d: %w", resourceID, err)
	}
	return release, nil
}

func (s *LeaseService) observe(err error, hours int) {
	metrics.ObserveLease(outcomeOf(err), hours)
}

func outcomeOf(err error) string {
	var (
		busy    *lease.ResourceBusyError
		capErr  *lease.DailyCapExceededError
		invalid *lease.InvalidRangeError
		nf      *lease.NotFoundError
	)
	switch {
	case err == nil:
		return metrics.OutcomeGranted
	case errors.As(err, &busy):
		return metrics.OutcomeBusy
	case errors.As(err, &capErr):
		return metrics.OutcomeDailyCap
	case errors.As(err, &invalid), errors.As(err, &nf):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrLocked):
		return metrics.OutcomeLocked
	default:
		return metrics.OutcomeError
	}
}

func (s *LeaseService) publishCreated(contract *models.Contract) {
	if s.eventBus == nil {
		return
	}

	hours := make([]string, len(contract.Hours))
	for i, h := range contract.Hours {
		hours[i] = h.String()
	}
	payload := events.ContractEventPayload{
		ContractID:    contract.ID,
		RequesterID:   contract.Requester.ID,
		RequesterName: contract.Requester.Name,
		RequesterVIP:  contract.Requester.IsVIP,
		ResourceID:    contract.Resource.ID,
		ResourceName:  contract.Resource.Name,
		Price:         contract.Price,
		Hours:         hours,
		CreatedAt:     contract.CreatedAt,
	}

	if err := s.eventBus.PublishJSON(events.EventContractCreated, payload); err != nil {
		s.logger.Error().Err(err).Int64("contract_id", contract.ID).Msg("publish event error")
	}
}

func (s *LeaseService) publishRejected(req models.LeaseRequest, reasons []string) {
	if s.eventBus == nil {
		return
	}

	payload := events.LeaseRejectedPayload{
		RequesterID: req.RequesterID,
		ResourceID:  req.ResourceID,
		TimeFrom:    req.TimeFrom,
		TimeTo:      req.TimeTo,
		Errors:      reasons,
	}
	if err := s.eventBus.PublishJSON(events.EventLeaseRejected, payload); err != nil {
		s.logger.Error().Err(err).Int64("resource_id", req.ResourceID).Msg("publish event error")
	}
}
