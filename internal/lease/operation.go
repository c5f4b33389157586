package lease

import (
	"context"
	"errors"
	"fmt"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"

	"github.com/rs/zerolog"
)

// Operation decides whether a lease request can be granted against a
// snapshot of existing contracts. It never writes anything.
type Operation struct {
	requesters    domain.RequesterStore
	resources     domain.ResourceStore
	contracts     domain.ContractStore
	maxDailyHours int
	logger        *zerolog.Logger
}

type Option func(*Operation)

// WithMaxDailyHours overrides models.MaxDailyHours. Non-positive values are ignored.
func WithMaxDailyHours(hours int) Option {
	return func(o *Operation) {
		if hours > 0 {
			o.maxDailyHours = hours
		}
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(o *Operation) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOperation(requesters domain.RequesterStore, resources domain.ResourceStore, contracts domain.ContractStore, opts ...Option) *Operation {
	nop := zerolog.Nop()
	op := &Operation{
		requesters:    requesters,
		resources:     resources,
		contracts:     contracts,
		maxDailyHours: models.MaxDailyHours,
		logger:        &nop,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func (o *Operation) MaxDailyHours() int {
	return o.maxDailyHours
}

// Run evaluates the request. Busy hours and cap violations come back as
// response errors; invalid ranges, unknown ids and store failures are
// returned as error.
func (o *Operation) Run(ctx context.Context, req models.LeaseRequest) (*models.LeaseResponse, error) {
	contract, err := o.Decide(ctx, req)
	if IsRejection(err) {
		response := &models.LeaseResponse{}
		response.AddError(err.Error())
		return response, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.LeaseResponse{Contract: contract}, nil
}

// Decide is Run with rejections returned as *ResourceBusyError or
// *DailyCapExceededError instead of response messages.
func (o *Operation) Decide(ctx context.Context, req models.LeaseRequest) (*models.Contract, error) {
	period, err := ExpandPeriod(req.TimeFrom, req.TimeTo)
	if err != nil {
		return nil, err
	}

	requester, err := o.requesters.GetRequester(ctx, req.RequesterID)
	if err != nil {
		return nil, lookupError("requester", req.RequesterID, err)
	}
	resource, err := o.resources.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, lookupError("resource", req.ResourceID, err)
	}

	contracts, err := o.contracts.GetForResource(ctx, resource.ID, period.StartDay(), period.EndDay())
	if err != nil {
		return nil, fmt.Errorf("load contracts for resource %d: %w", resource.ID, err)
	}

	log := o.logger.With().
		Int64("requester_id", requester.ID).
		Int64("resource_id", resource.ID).
		Str("period_start", period.Start.String()).
		Int("hours", period.Len()).
		Logger()

	busy := BusyHoursIn(period, BuildOccupancy(contracts), requester.IsVIP)
	if len(busy) > 0 {
		log.Debug().Int("busy_hours", len(busy)).Msg("lease rejected: resource busy")
		return nil, &ResourceBusyError{ResourceID: resource.ID, ResourceName: resource.Name, BusyHours: busy}
	}

	if err := CheckDailyCap(period, o.maxDailyHours); err != nil {
		log.Debug().Err(err).Msg("lease rejected: daily cap")
		return nil, err
	}

	contract := &models.Contract{
		Requester: *requester,
		Resource:  *resource,
		Price:     Price(period, *resource, o.maxDailyHours),
		Hours:     period.Slots(),
	}
	log.Debug().Float64("price", contract.Price).Msg("lease granted")
	return contract, nil
}

func lookupError(entity string, id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id, Err: err}
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}
