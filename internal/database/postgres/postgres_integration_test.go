//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RepositorySuite struct {
	suite.Suite
	container testcontainers.Container
	repo      *Repository
	ctx       context.Context
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "leases",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432/tcp")
	s.Require().NoError(err)

	dsn := fmt.Sprintf("postgres://test:testpass@%s:%s/leases?sslmode=disable", host, port.Port())
	s.repo, err = New(s.ctx, dsn, nil)
	s.Require().NoError(err)
}

func (s *RepositorySuite) TearDownSuite() {
	if s.repo != nil {
		_ = s.repo.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RepositorySuite) SetupTest() {
	_, err := s.repo.pool.Exec(s.ctx, `TRUNCATE contract_hours, contracts, requesters, resources RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)

	err = s.repo.SeedCatalog(s.ctx,
		[]models.Requester{
			{ID: 1, Name: "Bob"},
			{ID: 2, Name: "Stinky", IsVIP: true},
			{ID: 3, Name: "Ann", IsVIP: true},
		},
		[]models.Resource{{ID: 1, Name: "Ugly Fred", HourlyRate: 20}},
	)
	s.Require().NoError(err)
}

func (s *RepositorySuite) hours(from string, n int) []models.HourSlot {
	start, err := models.ParseHourSlot(from)
	s.Require().NoError(err)
	res := make([]models.HourSlot, n)
	for i := range res {
		res[i] = start + models.HourSlot(i)
	}
	return res
}

func (s *RepositorySuite) contract(requesterID int64, slots []models.HourSlot) *models.Contract {
	requester, err := s.repo.GetRequester(s.ctx, requesterID)
	s.Require().NoError(err)
	return &models.Contract{
		Requester: *requester,
		Resource:  models.Resource{ID: 1, Name: "Ugly Fred", HourlyRate: 20},
		Price:     float64(len(slots)) * 20,
		Hours:     slots,
	}
}

func (s *RepositorySuite) TestCatalog() {
	res, err := s.repo.GetResource(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("Ugly Fred", res.Name)

	_, err = s.repo.GetRequester(s.ctx, 42)
	s.ErrorIs(err, domain.ErrNotFound)

	list, err := s.repo.ListResources(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *RepositorySuite) TestSaveAndFetch() {
	overnight := s.contract(1, s.hours("2017-01-01 22", 4))
	s.Require().NoError(s.repo.SaveContract(s.ctx, overnight))
	s.NotZero(overnight.ID)

	for _, day := range []string{"2017-01-01", "2017-01-02"} {
		got, err := s.repo.GetForResource(s.ctx, 1, day, day)
		s.Require().NoError(err)
		s.Require().Len(got, 1, day)
		s.Equal(overnight.Hours, got[0].Hours)
		s.Equal("Bob", got[0].Requester.Name)
	}

	got, err := s.repo.GetForResource(s.ctx, 1, "2017-01-03", "2017-01-09")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *RepositorySuite) TestPrivilegeRule() {
	s.Require().NoError(s.repo.SaveContract(s.ctx, s.contract(1, s.hours("2017-01-01 00", 4))))

	s.ErrorIs(s.repo.SaveContract(s.ctx, s.contract(1, s.hours("2017-01-01 03", 2))), domain.ErrConflict)
	s.NoError(s.repo.SaveContract(s.ctx, s.contract(2, s.hours("2017-01-01 01", 2))))
	s.ErrorIs(s.repo.SaveContract(s.ctx, s.contract(3, s.hours("2017-01-01 02", 1))), domain.ErrConflict)
}

func (s *RepositorySuite) TestConcurrentSave() {
	slots := s.hours("2017-03-01 09", 3)
	const workers = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &models.Contract{
				Requester: models.Requester{ID: 1, Name: "Bob"},
				Resource:  models.Resource{ID: 1},
				Price:     60,
				Hours:     slots,
			}
			if err := s.repo.SaveContract(s.ctx, c); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	got, err := s.repo.GetForResource(s.ctx, 1, "2017-03-01", "2017-03-01")
	require.NoError(s.T(), err)
	s.Len(got, 1)
}
