package analytics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/profitboard/internal/platform/db"
)

const testDatabaseEnv = "PROFITBOARD_TEST_DATABASE_URL"

// newIntegrationRepo creates a throwaway schema, applies testdata/schema.sql and
// runs seed statements against it. The schema is dropped on cleanup.
func newIntegrationRepo(t *testing.T, seed ...string) *PGRepository {
	t.Helper()
	return newIntegrationRepoIn(t, "UTC", seed...)
}

// newIntegrationRepoIn is newIntegrationRepo with the report time zone set to tz.
func newIntegrationRepoIn(t *testing.T, tz string, seed ...string) *PGRepository {
	t.Helper()
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}
	ctx := context.Background()

	schema := "profitboard_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	quoted := pgx.Identifier{schema}.Sanitize()

	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+quoted+" CASCADE")
		_ = admin.Close(context.Background())
	})

	ddl, err := os.ReadFile("testdata/schema.sql")
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+quoted)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, strings.ReplaceAll(string(ddl), "__SCHEMA__", quoted))
	require.NoError(t, err)
	for _, stmt := range seed {
		_, err := admin.Exec(ctx, strings.ReplaceAll(stmt, "__SCHEMA__", quoted))
		require.NoError(t, err, stmt)
	}

	provider, err := db.New(ctx, db.Config{DSN: dsn, MaxConns: 4, StatementTimeout: 10 * time.Second, Timezone: tz})
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	return NewRepository(provider.Pool(), schema)
}

func january(t *testing.T) Filter {
	t.Helper()
	r, err := NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return Filter{Range: r}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestIntegrationSingleOrderExample(t *testing.T) {
	repo := newIntegrationRepo(t,
		`INSERT INTO __SCHEMA__.marketplaces VALUES ('FR', 'France')`,
		`INSERT INTO __SCHEMA__.orders VALUES ('1', 'FR', '2024-01-05 10:00:00+00')`,
		`INSERT INTO __SCHEMA__.order_lines (order_id, line_id, marketplace_code, sku, qty, price_tax_incl)
		 VALUES ('1', '1', 'FR', 'A1', 2, 10.00)`,
		`INSERT INTO __SCHEMA__.refunds (order_id, line_id, marketplace_code, created_at, amount_tax_excl, tax_amount)
		 VALUES ('1', '1', 'FR', '2024-01-07 09:00:00+00', 2.00, 0.40)`,
	)
	ctx := context.Background()

	rows, err := repo.DailyKPIs(ctx, january(t))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FR", rows[0].MarketplaceCode)
	assert.Equal(t, "2024-01-05", rows[0].Day.Format(DateLayout))
	assert.True(t, rows[0].GMV.Equal(dec("20.00")), rows[0].GMV.String())
	assert.True(t, rows[0].Refunds.Equal(dec("2.40")), rows[0].Refunds.String())
	assert.True(t, rows[0].Fees.IsZero())
	assert.True(t, rows[0].Contribution.Equal(dec("17.60")), rows[0].Contribution.String())

	markets, err := repo.ListMarketplaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Marketplace{{Code: "FR", Name: "France"}}, markets)
}

func TestIntegrationRefundsArePreAggregated(t *testing.T) {
	repo := newIntegrationRepo(t,
		`INSERT INTO __SCHEMA__.orders VALUES ('10', 'FR', '2024-01-10 10:00:00+00')`,
		`INSERT INTO __SCHEMA__.order_lines (order_id, line_id, marketplace_code, sku, qty, price_tax_excl, tax_amount, fees_total)
		 VALUES ('10', '1', 'FR', 'B2', 3, 10.00, 2.00, 1.50)`,
		`INSERT INTO __SCHEMA__.refunds (order_id, line_id, marketplace_code, created_at, amount_tax_excl, tax_amount) VALUES
		 ('10', '1', 'FR', '2024-01-11 00:00:00+00', 1.00, 0.20),
		 ('10', '1', 'FR', '2024-01-12 00:00:00+00', 2.00, 0.40),
		 ('10', '1', 'FR', '2024-01-13 00:00:00+00', 3.00, 0.60)`,
	)
	ctx := context.Background()

	skus, err := repo.TopSKUs(ctx, january(t), 0)
	require.NoError(t, err)
	require.Len(t, skus, 1)
	assert.True(t, skus[0].Units.Equal(dec("3")))
	assert.True(t, skus[0].GMV.Equal(dec("36.00")), skus[0].GMV.String())
	assert.True(t, skus[0].Refunds.Equal(dec("7.20")), skus[0].Refunds.String())
	assert.True(t, skus[0].Fees.Equal(dec("1.50")))
	assert.True(t, skus[0].Contribution.Equal(dec("27.30")), skus[0].Contribution.String())

	page, err := repo.OrderLineDetail(ctx, january(t), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Rows, 1)
	assert.True(t, page.Rows[0].UnitGross.Equal(dec("12.00")))
	assert.True(t, page.Rows[0].Refunds.Equal(dec("7.20")))
}

func seedManyLines(n int) []string {
	stmts := make([]string, 0, 2*n)
	for i := 1; i <= n; i++ {
		market := "FR"
		if i%3 == 0 {
			market = "IT"
		}
		day := 1 + i%28
		stmts = append(stmts,
			fmt.Sprintf(`INSERT INTO __SCHEMA__.orders VALUES ('%03d', '%s', '2024-01-%02d 12:00:00+00')`, i, market, day),
			fmt.Sprintf(`INSERT INTO __SCHEMA__.order_lines (order_id, line_id, marketplace_code, sku, qty, price_tax_incl, fees_total)
				VALUES ('%03d', '1', '%s', 'SKU%d', %d, 5.00, 0.50)`, i, market, i%4, 1+i%3),
		)
	}
	return stmts
}

func TestIntegrationDetailPagesConcatenate(t *testing.T) {
	repo := newIntegrationRepo(t, seedManyLines(23)...)
	ctx := context.Background()
	filter := january(t)

	full, err := repo.OrderLineDetail(ctx, filter, 0, 1000)
	require.NoError(t, err)
	require.Equal(t, 23, full.Total)
	require.Len(t, full.Rows, 23)

	for _, size := range []int{1, 4, 7, 23} {
		var all []OrderLine
		for offset := 0; offset < full.Total; offset += size {
			page, err := repo.OrderLineDetail(ctx, filter, offset, size)
			require.NoError(t, err)
			assert.Equal(t, full.Total, page.Total)
			all = append(all, page.Rows...)
		}
		require.Len(t, all, len(full.Rows))
		for i := range all {
			assert.Equal(t, full.Rows[i].OrderID, all[i].OrderID, "size %d row %d", size, i)
		}
	}

	past, err := repo.OrderLineDetail(ctx, filter, 500, 10)
	require.NoError(t, err)
	assert.Equal(t, 23, past.Total)
	assert.Empty(t, past.Rows)
}

func TestIntegrationAbsentFiltersMatchUnfiltered(t *testing.T) {
	repo := newIntegrationRepo(t, seedManyLines(12)...)
	ctx := context.Background()
	filter := january(t)

	unfiltered, err := repo.DailyKPIs(ctx, filter)
	require.NoError(t, err)

	withEmpty := filter
	withEmpty.MarketplaceCodes = []string{}
	withEmpty.SKU = ""
	again, err := repo.DailyKPIs(ctx, withEmpty)
	require.NoError(t, err)
	assert.Equal(t, len(unfiltered), len(again))

	onlyIT := filter
	onlyIT.MarketplaceCodes = []string{"IT"}
	itRows, err := repo.DailyKPIs(ctx, onlyIT)
	require.NoError(t, err)
	for _, row := range itRows {
		assert.Equal(t, "IT", row.MarketplaceCode)
	}

	missing := filter
	missing.SKU = "NOPE"
	none, err := repo.DailyKPIs(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestIntegrationEmptyStore(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	bounds, err := repo.DateBounds(ctx)
	require.NoError(t, err)
	assert.True(t, bounds.Empty())

	rows, err := repo.DailyKPIs(ctx, january(t))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIntegrationDateBoundsFollowReportTimezone(t *testing.T) {
	repo := newIntegrationRepoIn(t, "Asia/Tokyo",
		`INSERT INTO __SCHEMA__.orders VALUES ('1', 'FR', '2024-01-05 23:30:00+00')`,
		`INSERT INTO __SCHEMA__.order_lines (order_id, line_id, marketplace_code, sku, qty, price_tax_incl)
		 VALUES ('1', '1', 'FR', 'A1', 1, 10.00)`,
	)
	ctx := context.Background()

	bounds, err := repo.DateBounds(ctx)
	require.NoError(t, err)
	require.False(t, bounds.Empty())
	assert.Equal(t, "2024-01-06", bounds.Max.Format(DateLayout))

	rng, ok := DefaultRange(bounds, 30)
	require.True(t, ok)
	rows, err := repo.DailyKPIs(ctx, Filter{Range: rng})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-06", rows[0].Day.Format(DateLayout))
}

func TestIntegrationOrderLineExport(t *testing.T) {
	repo := newIntegrationRepo(t,
		`INSERT INTO __SCHEMA__.orders VALUES
		 ('1', 'FR', '2024-01-05 10:00:00+00'),
		 ('2', 'FR', '2024-01-06 10:00:00+00'),
		 ('3', 'DE', '2024-01-07 10:00:00+00')`,
		`INSERT INTO __SCHEMA__.order_lines (order_id, line_id, marketplace_code, sku, qty, price_tax_incl) VALUES
		 ('1', '1', 'FR', 'A1', 1, 10.00),
		 ('2', '1', 'FR', 'A1', 1, 10.00),
		 ('2', '2', 'FR', 'B2', 1, 5.00),
		 ('3', '1', 'DE', 'A1', 1, 7.00)`,
	)
	ctx := context.Background()

	all, err := repo.OrderLineExport(ctx, january(t), 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "3", all[0].OrderID)
	assert.Equal(t, []string{"2", "2"}, []string{all[1].OrderID, all[2].OrderID})
	assert.Equal(t, "2", all[1].LineID)

	page, err := repo.OrderLineDetail(ctx, january(t), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, page.Rows, all)

	capped, err := repo.OrderLineExport(ctx, january(t), 2)
	require.NoError(t, err)
	assert.Equal(t, all[:2], capped)

	fr := january(t)
	fr.MarketplaceCodes = []string{"FR"}
	frOnly, err := repo.OrderLineExport(ctx, fr, 100)
	require.NoError(t, err)
	assert.Len(t, frOnly, 3)
}
