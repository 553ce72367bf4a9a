package analytics

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// queryBuilder renders the canonical profitability statements against a schema.
// Every statement shares the same four leading parameters:
//
//	$1 start date, $2 exclusive end date, $3 sku or NULL, $4 marketplace codes or NULL
type queryBuilder struct {
	orders       string
	orderLines   string
	refunds      string
	marketplaces string
}

func newQueryBuilder(schema string) queryBuilder {
	if strings.TrimSpace(schema) == "" {
		schema = "mirakl"
	}
	table := func(name string) string {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return queryBuilder{
		orders:       table("orders"),
		orderLines:   table("order_lines"),
		refunds:      table("refunds"),
		marketplaces: table("marketplaces"),
	}
}

// joined returns the shared CTE. Refunds are summed per composite line key
// before the left join so a line with N refund rows still contributes one row.
func (b queryBuilder) joined() string {
	return fmt.Sprintf(`WITH lines AS (
    SELECT
        o.marketplace_code,
        o.created_at::date AS day,
        ol.order_id,
        ol.line_id,
        COALESCE(ol.sku, '') AS sku,
        COALESCE(ol.qty, 0)::numeric AS qty,
        COALESCE(ol.price_tax_incl, COALESCE(ol.price_tax_excl, 0) + COALESCE(ol.tax_amount, 0))::numeric AS unit_gross,
        COALESCE(ol.shipping_price, 0)::numeric AS shipping_price,
        COALESCE(ol.fees_total, 0)::numeric AS fees
    FROM %[1]s o
    JOIN %[2]s ol
      ON ol.order_id = o.order_id AND ol.marketplace_code = o.marketplace_code
    WHERE o.created_at >= $1::date AND o.created_at < $2::date
      AND ($3::text IS NULL OR ol.sku = $3::text)
      AND ($4::text[] IS NULL OR o.marketplace_code = ANY($4::text[]))
),
refund_totals AS (
    SELECT r.order_id, r.line_id, r.marketplace_code,
           SUM(COALESCE(r.amount_tax_excl, 0) + COALESCE(r.tax_amount, 0))::numeric AS refund_amount
    FROM %[3]s r
    WHERE r.created_at >= $1::date AND r.created_at < $2::date
    GROUP BY r.order_id, r.line_id, r.marketplace_code
),
joined AS (
    SELECT
        l.marketplace_code, l.day, l.order_id, l.line_id, l.sku, l.qty,
        l.unit_gross, l.shipping_price, l.fees,
        (l.qty * l.unit_gross)::numeric AS line_gmv,
        COALESCE(rt.refund_amount, 0)::numeric AS refunds
    FROM lines l
    LEFT JOIN refund_totals rt
      ON rt.order_id = l.order_id AND rt.line_id = l.line_id AND rt.marketplace_code = l.marketplace_code
)
`, b.orders, b.orderLines, b.refunds)
}

func (b queryBuilder) dailyKPIs() string {
	return b.joined() + `SELECT
    marketplace_code,
    day,
    SUM(line_gmv) AS gmv,
    SUM(refunds) AS refunds,
    SUM(fees) AS fees,
    SUM(line_gmv) - SUM(refunds) - SUM(fees) AS contribution
FROM joined
GROUP BY marketplace_code, day
ORDER BY day, marketplace_code`
}

// topSKUs ranks by contribution; a positive limit appends LIMIT $5.
func (b queryBuilder) topSKUs(limited bool) string {
	sql := b.joined() + `SELECT
    marketplace_code,
    sku,
    SUM(qty) AS units,
    SUM(line_gmv) AS gmv,
    SUM(refunds) AS refunds,
    SUM(fees) AS fees,
    SUM(line_gmv) - SUM(refunds) - SUM(fees) AS contribution
FROM joined
GROUP BY marketplace_code, sku
ORDER BY contribution DESC, marketplace_code, sku`
	if limited {
		sql += "\nLIMIT $5"
	}
	return sql
}

const detailColumns = `SELECT
    marketplace_code,
    day,
    order_id::text,
    line_id::text,
    sku,
    qty,
    unit_gross,
    shipping_price,
    line_gmv,
    refunds,
    fees,
    line_gmv - refunds - fees AS contribution
FROM joined
ORDER BY day DESC, order_id DESC, line_id DESC`

func (b queryBuilder) detailPage() string {
	return b.joined() + detailColumns + "\nOFFSET $5 LIMIT $6"
}

// detailExport reads every matching line in detail order, capped at $5 rows.
func (b queryBuilder) detailExport() string {
	return b.joined() + detailColumns + "\nLIMIT $5"
}

func (b queryBuilder) detailCount() string {
	return b.joined() + `SELECT COUNT(*) FROM joined`
}

func (b queryBuilder) listMarketplaces() string {
	return fmt.Sprintf(`SELECT code, COALESCE(name, '') FROM %s ORDER BY code`, b.marketplaces)
}

func (b queryBuilder) dateBounds() string {
	// Cast in SQL so the days follow the connection time zone like the aggregates do.
	return fmt.Sprintf(`SELECT MIN(created_at)::date, MAX(created_at)::date FROM %s`, b.orders)
}

// filterArgs binds $1..$4. Absent filters are bound as NULL so the predicates
// pass every row through.
func filterArgs(f Filter) []any {
	args := []any{
		dateParam(f.Range.Start),
		dateParam(f.Range.EndExclusive()),
		pgtype.Text{String: f.SKU, Valid: f.SKU != ""},
		nil,
	}
	if len(f.MarketplaceCodes) > 0 {
		args[3] = f.MarketplaceCodes
	}
	return args
}
