package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/profitboard/internal/analytics"
)

// Sheet names used by WriteWorkbook.
const (
	SheetSummary    = "Summary"
	SheetDaily      = "Daily KPIs"
	SheetTopSKUs    = "Top SKUs"
	SheetOrderLines = "Order Lines"
)

// Workbook is the data behind one XLSX download.
type Workbook struct {
	Range       analytics.DateRange
	Marketplace []string
	SKU         string
	GeneratedAt time.Time
	Daily       []analytics.DailyKPI
	TopSKUs     []analytics.SKUPerformance
	OrderLines  []analytics.OrderLine
}

type styles struct {
	header int
	money  int
}

// WriteWorkbook renders the summary, daily, SKU and order line sheets.
func WriteWorkbook(w io.Writer, book Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetDaily, SheetTopSKUs, SheetOrderLines} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("export: new sheet %s: %w", sheet, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writeSummarySheet(f, st, book); err != nil {
		return err
	}
	if err := writeDailySheet(f, st, book.Daily); err != nil {
		return err
	}
	if err := writeSKUSheet(f, st, book.TopSKUs); err != nil {
		return err
	}
	if err := writeOrderLineSheet(f, st, book.OrderLines); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	if err != nil {
		return styles{}, fmt.Errorf("export: header style: %w", err)
	}
	format := "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return styles{}, fmt.Errorf("export: money style: %w", err)
	}
	return styles{header: header, money: money}, nil
}

func writeSummarySheet(f *excelize.File, st styles, book Workbook) error {
	totals := analytics.Totals(book.Daily)
	marketplaces := "All"
	if len(book.Marketplace) > 0 {
		marketplaces = strings.Join(book.Marketplace, ", ")
	}
	sku := book.SKU
	if sku == "" {
		sku = "All"
	}
	generated := book.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	rows := [][]any{
		{"Start date", book.Range.Start.Format(analytics.DateLayout)},
		{"End date", book.Range.End.Format(analytics.DateLayout)},
		{"Marketplaces", marketplaces},
		{"SKU", sku},
		{"Generated", generated.Format(time.RFC3339)},
		{},
		{"GMV", totals.GMV.InexactFloat64()},
		{"Refunds", totals.Refunds.InexactFloat64()},
		{"Fees", totals.Fees.InexactFloat64()},
		{"Contribution", totals.Contribution.InexactFloat64()},
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A10", st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "B7", "B10", st.money); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

func writeDailySheet(f *excelize.File, st styles, rows []analytics.DailyKPI) error {
	if err := writeHeader(f, st, SheetDaily, dailyKPIHeader); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, SheetDaily, i+2, []any{
			row.MarketplaceCode,
			row.Day.Format(analytics.DateLayout),
			row.GMV.InexactFloat64(),
			row.Refunds.InexactFloat64(),
			row.Fees.InexactFloat64(),
			row.Contribution.InexactFloat64(),
		}); err != nil {
			return err
		}
	}
	return styleMoney(f, st, SheetDaily, 3, 6, len(rows))
}

func writeSKUSheet(f *excelize.File, st styles, rows []analytics.SKUPerformance) error {
	if err := writeHeader(f, st, SheetTopSKUs, topSKUHeader); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, SheetTopSKUs, i+2, []any{
			row.MarketplaceCode,
			row.SKU,
			row.Units.InexactFloat64(),
			row.GMV.InexactFloat64(),
			row.Refunds.InexactFloat64(),
			row.Fees.InexactFloat64(),
			row.Contribution.InexactFloat64(),
		}); err != nil {
			return err
		}
	}
	return styleMoney(f, st, SheetTopSKUs, 4, 7, len(rows))
}

func writeOrderLineSheet(f *excelize.File, st styles, rows []analytics.OrderLine) error {
	if err := writeHeader(f, st, SheetOrderLines, orderLineHeader); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, SheetOrderLines, i+2, []any{
			row.MarketplaceCode,
			row.Day.Format(analytics.DateLayout),
			row.OrderID,
			row.LineID,
			row.SKU,
			row.Qty.InexactFloat64(),
			row.UnitGross.InexactFloat64(),
			row.ShippingPrice.InexactFloat64(),
			row.LineGMV.InexactFloat64(),
			row.Refunds.InexactFloat64(),
			row.Fees.InexactFloat64(),
			row.Contribution.InexactFloat64(),
		}); err != nil {
			return err
		}
	}
	return styleMoney(f, st, SheetOrderLines, 7, 12, len(rows))
}

func writeHeader(f *excelize.File, st styles, sheet string, header []string) error {
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleMoney(f *excelize.File, st styles, sheet string, fromCol, toCol, rows int) error {
	if rows == 0 {
		return nil
	}
	from, err := excelize.CoordinatesToCellName(fromCol, 2)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, rows+1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, st.money)
}
