package export

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/profitboard/internal/analytics"
)

var dailyKPIHeader = []string{"marketplace_code", "day", "gmv", "refunds", "fees", "contribution"}

var topSKUHeader = []string{"marketplace_code", "sku", "units", "gmv", "refunds", "fees", "contribution"}

var orderLineHeader = []string{
	"marketplace_code", "day", "order_id", "line_id", "sku", "qty",
	"unit_gross", "shipping_price", "line_gmv", "refunds", "fees", "contribution",
}

// WriteDailyKPICSV emits one row per marketplace and day.
func WriteDailyKPICSV(w io.Writer, rows []analytics.DailyKPI) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(dailyKPIHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.MarketplaceCode,
			row.Day.Format(analytics.DateLayout),
			formatMoney(row.GMV),
			formatMoney(row.Refunds),
			formatMoney(row.Fees),
			formatMoney(row.Contribution),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTopSKUCSV emits the SKU ranking in the order given.
func WriteTopSKUCSV(w io.Writer, rows []analytics.SKUPerformance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(topSKUHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.MarketplaceCode,
			row.SKU,
			row.Units.String(),
			formatMoney(row.GMV),
			formatMoney(row.Refunds),
			formatMoney(row.Fees),
			formatMoney(row.Contribution),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOrderLinesCSV emits drill-down rows.
func WriteOrderLinesCSV(w io.Writer, rows []analytics.OrderLine) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(orderLineHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.MarketplaceCode,
			row.Day.Format(analytics.DateLayout),
			row.OrderID,
			row.LineID,
			row.SKU,
			row.Qty.String(),
			formatMoney(row.UnitGross),
			formatMoney(row.ShippingPrice),
			formatMoney(row.LineGMV),
			formatMoney(row.Refunds),
			formatMoney(row.Fees),
			formatMoney(row.Contribution),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}
