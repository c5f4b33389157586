package domain

import (
	"context"
	"time"

	"leasemarket/internal/models"
)

type RequesterStore interface {
	GetRequester(ctx context.Context, id int64) (*models.Requester, error)
}

type ResourceStore interface {
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
}

// ContractStore returns contracts of a resource touching the inclusive day range.
// Days are YYYY-MM-DD strings.
type ContractStore interface {
	GetForResource(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error)
}

type ContractWriter interface {
	SaveContract(ctx context.Context, contract *models.Contract) error
}

type Repository interface {
	RequesterStore
	ResourceStore
	ContractStore
	ContractWriter
	ListResources(ctx context.Context) ([]models.Resource, error)
}

// ResourceLocker grants a per-resource mutual exclusion lease.
type ResourceLocker interface {
	Acquire(ctx context.Context, resourceID int64, ttl time.Duration) (release func(context.Context) error, err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type LeaseService interface {
	Lease(ctx context.Context, req models.LeaseRequest) (*models.LeaseResponse, error)
	Contracts(ctx context.Context, resourceID int64, dayFrom, dayTo string) ([]models.Contract, error)
	Resources(ctx context.Context) ([]models.Resource, error)
	Resource(ctx context.Context, id int64) (*models.Resource, error)
}
