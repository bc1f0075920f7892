package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/washwise/internal/model"
)

func TestOrdersXLSX(t *testing.T) {
	orders := []model.Order{
		{
			ID:            "o1",
			UserID:        "u1",
			CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			TotalCost:     decimal.NewFromInt(50),
			PaymentStatus: model.PaymentUnpaid,
			Items: []model.OrderItem{
				{ID: "i1", ServiceID: "wash_and_fold", Quantity: 2, UnitPrice: decimal.NewFromInt(10), Cost: decimal.Zero, Covered: true, Status: "pending"},
				{ID: "i2", ServiceID: "dry_cleaning", Quantity: 1, UnitPrice: decimal.NewFromInt(50), Cost: decimal.NewFromInt(50), Status: "tagging"},
			},
		},
	}

	data, err := OrdersXLSX(orders, map[string]string{"u1": "alice"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "order_id", rows[0][0])
	assert.Equal(t, []string{"o1", "alice", "2025-03-01T10:00:00Z", "unpaid", "no", "50.00", "i1", "wash_and_fold", "2", "10.00", "0.00", "yes", "pending"}, rows[1])
	assert.Equal(t, "dry_cleaning", rows[2][7])
	assert.Equal(t, "50.00", rows[2][10])
}

func TestOrdersXLSX_Empty(t *testing.T) {
	data, err := OrdersXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOrdersFileName(t *testing.T) {
	assert.Equal(t, "orders_20250301_100000.xlsx", OrdersFileName(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
}
