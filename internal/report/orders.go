// Package report renders order data as spreadsheets for the back office.
package report

import (
	"bytes"
	"fmt"

	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"
)

var (
	orderHeader = []interface{}{"Order ID", "User ID", "Customer", "Name", "Email", "Phone", "City", "Country", "Payment", "Status", "Total", "Placed At"}
	itemHeader  = []interface{}{"Order ID", "Product", "Quantity", "Unit Price", "Line Total"}
)

// OrdersWorkbook writes one row per order and one row per line item.
func OrdersWorkbook(orders []model.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), OrdersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, OrdersSheet, 1, orderHeader); err != nil {
		return nil, err
	}
	if err := writeRow(f, ItemsSheet, 1, itemHeader); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, o := range orders {
		row := []interface{}{
			o.ID, o.UserID, o.UserName, o.Name, o.Email, o.Phone, o.City, o.Country,
			o.PaymentMethod, string(o.Status), o.TotalPrice, o.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := writeRow(f, OrdersSheet, i+2, row); err != nil {
			return nil, err
		}
		for _, item := range o.OrderItems {
			line := []interface{}{o.ID, item.ProductName, item.Quantity, item.Price, item.Price * float64(item.Quantity)}
			if err := writeRow(f, ItemsSheet, itemRow, line); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	if err := styleHeader(f); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for sheet, header := range map[string][]interface{}{OrdersSheet: orderHeader, ItemsSheet: itemHeader} {
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}
	return nil
}
