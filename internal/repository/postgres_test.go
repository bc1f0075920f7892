package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/washwise/internal/model"
)

func TestCentsConversion(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
	}{
		{"0", 0},
		{"5", 500},
		{"12.5", 1250},
		{"17.99", 1799},
		{"0.005", 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			assert.Equal(t, tt.cents, toCents(d))
			assert.True(t, fromCents(tt.cents).Equal(d.Round(2)))
		})
	}
}

// Тесты ниже работают с настоящей БД и пропускаются без DATABASE_URI.

func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createTestCustomer(t *testing.T, repo *PostgresRepository) *model.User {
	t.Helper()

	name := "u" + uuid.NewString()[:12]
	u := &model.User{
		Username: name,
		Email:    name + "@example.com",
		Role:     model.RoleCustomer,
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	t.Cleanup(func() { _ = repo.DeleteUser(context.Background(), u.ID) })
	return u
}

func washOrder(owner *model.User) (*model.Order, error) {
	owner.MonthlyUsage["wash"]++
	return &model.Order{
		TotalCost:     decimal.RequireFromString("5"),
		PaymentStatus: model.PaymentUnpaid,
		Items: []model.OrderItem{{
			ServiceID: "wash",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("5"),
			Cost:      decimal.RequireFromString("5"),
			Status:    "received",
		}},
	}, nil
}

func TestCreateOrder_IdempotencyReplay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestCustomer(t, repo)

	first, created, err := repo.CreateOrder(ctx, owner.ID, "retry-1", washOrder)
	require.NoError(t, err)
	require.True(t, created)

	builds := 0
	second, created, err := repo.CreateOrder(ctx, owner.ID, "retry-1", func(u *model.User) (*model.Order, error) {
		builds++
		return washOrder(u)
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, builds)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Items, 1)
	assert.True(t, second.TotalCost.Equal(decimal.RequireFromString("5")))

	u, err := repo.GetUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.MonthlyUsage["wash"])
}

func TestCreateOrder_BuildErrorRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestCustomer(t, repo)

	errBuild := errors.New("pricing failed")
	_, _, err := repo.CreateOrder(ctx, owner.ID, "", func(u *model.User) (*model.Order, error) {
		u.MonthlyUsage["wash"] = 3
		return nil, errBuild
	})
	require.ErrorIs(t, err, errBuild)

	orders, err := repo.GetOrdersByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	u, err := repo.GetUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, u.MonthlyUsage["wash"])
}

func TestCreateOrder_ConcurrentOrdersConsumeUsageSequentially(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestCustomer(t, repo)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.CreateOrder(ctx, owner.ID, "", washOrder)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	u, err := repo.GetUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, n, u.MonthlyUsage["wash"])
}

func TestUpdateItemStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestCustomer(t, repo)

	order, _, err := repo.CreateOrder(ctx, owner.ID, "", washOrder)
	require.NoError(t, err)
	itemID := order.Items[0].ID

	errRejected := errors.New("rejected")
	_, _, err = repo.UpdateItemStatus(ctx, itemID, func(it *model.OrderItem) (bool, error) {
		it.Status = "washing"
		return false, errRejected
	})
	require.ErrorIs(t, err, errRejected)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "received", stored.Items[0].Status)

	item, changed, err := repo.UpdateItemStatus(ctx, itemID, func(it *model.OrderItem) (bool, error) {
		it.Status = "washing"
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "washing", item.Status)

	stored, err = repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "washing", stored.Items[0].Status)
}
