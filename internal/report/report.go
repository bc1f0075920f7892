// Package report формирует выгрузки заказов в Excel.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/washwise/internal/model"
)

// OrdersFileName возвращает имя файла выгрузки на момент now.
func OrdersFileName(now time.Time) string {
	return fmt.Sprintf("orders_%s.xlsx", now.Format("20060102_150405"))
}

// OrdersXLSX строит книгу с одной строкой на позицию заказа.
// usernames сопоставляет id пользователя с его именем.
func OrdersXLSX(orders []model.Order, usernames map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"order_id",
		"customer",
		"created_at",
		"payment_status",
		"fully_plan_covered",
		"order_total",
		"item_id",
		"service_id",
		"quantity",
		"unit_price",
		"item_cost",
		"covered",
		"status",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, o := range orders {
		for _, it := range o.Items {
			excelRow := []interface{}{
				o.ID,
				usernames[o.UserID],
				o.CreatedAt.UTC().Format(time.RFC3339),
				string(o.PaymentStatus),
				yesNo(o.FullyPlanCovered),
				o.TotalCost.StringFixed(2),
				it.ID,
				it.ServiceID,
				it.Quantity,
				it.UnitPrice.StringFixed(2),
				it.Cost.StringFixed(2),
				yesNo(it.Covered),
				it.Status,
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
