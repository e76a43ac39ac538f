package ratio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/statement"
)

var (
	some    = model.Some
	missing = model.Missing
)

func TestDiv(t *testing.T) {
	assert.Equal(t, some(2.5), Div(some(5), some(2)))
	assert.Equal(t, some(-0.5), Div(some(1), some(-2)))
	assert.Equal(t, missing, Div(some(5), some(0)))
	assert.Equal(t, missing, Div(some(0), some(0)))
	assert.Equal(t, missing, Div(missing, some(2)))
	assert.Equal(t, missing, Div(some(5), missing))
	assert.Equal(t, missing, Div(missing, missing))
}

func TestAvg(t *testing.T) {
	pairs := [][2]model.Amount{
		{some(1000), some(1200)},
		{some(-3), some(7)},
		{missing, some(4)},
		{some(4), missing},
		{missing, missing},
	}
	for _, p := range pairs {
		assert.Equal(t, Avg(p[0], p[1]), Avg(p[1], p[0]), "commutative")
	}
	assert.Equal(t, some(1100), Avg(some(1000), some(1200)))
	assert.Equal(t, some(4), Avg(missing, some(4)))
	assert.Equal(t, some(4), Avg(some(4), missing))
	assert.Equal(t, missing, Avg(missing, missing))
}

func scenario() model.Statements {
	header := []string{"Item", "2022", "2023"}
	return model.Statements{
		BalanceSheet: &model.StatementTable{Header: header, Rows: [][]string{
			{"Total assets", "1,000", "1,200"},
			{"Total liabilities", "600", "750"},
			{"Total equity", "400", "450"},
		}},
		IncomeStatement: &model.StatementTable{Header: header, Rows: [][]string{
			{"Net revenue", "1,800", "2,000"},
			{"Gross profit", "400", "500"},
			{"Interest expense", "-35", "-40"},
			{"Profit before tax", "120", "150"},
		}},
		CashFlow: &model.StatementTable{Header: header},
	}
}

func TestFromStatements_Scenario(t *testing.T) {
	v, items, err := FromStatements(scenario(), statement.DefaultAliases())
	require.NoError(t, err)
	require.NotNil(t, items)

	assert.InDelta(t, 0.25, v.Get(1).Value, 1e-12)
	assert.InDelta(t, 0.075, v.Get(2).Value, 1e-12)
	assert.InDelta(t, 150.0/1100.0, v.Get(3).Value, 1e-12)
	assert.InDelta(t, 150.0/425.0, v.Get(4).Value, 1e-12)
	assert.InDelta(t, 0.625, v.Get(5).Value, 1e-12)
	assert.InDelta(t, 750.0/450.0, v.Get(6).Value, 1e-12)
	assert.InDelta(t, 4.75, v.Get(9).Value, 1e-12)
	// 折旧与一年内到期长期负债缺失按0计
	assert.InDelta(t, 4.75, v.Get(10).Value, 1e-12)
	assert.InDelta(t, 2000.0/1100.0, v.Get(14).Value, 1e-12)

	for _, n := range []int{7, 8, 11, 12, 13} {
		assert.False(t, v.Get(n).Valid, "X%d should be missing", n)
	}
}

func TestFromStatements_MissingTable(t *testing.T) {
	s := scenario()
	s.IncomeStatement = nil
	_, _, err := FromStatements(s, statement.DefaultAliases())
	require.ErrorIs(t, err, statement.ErrMissingStatement)
}

func pair(prior, cur float64) model.PeriodPair {
	return model.PeriodPair{Prior: some(prior), Current: some(cur)}
}

func TestCompute_AllRatios(t *testing.T) {
	items := statement.Items{
		statement.NetRevenue:         pair(900, 1000),
		statement.CostOfSales:        pair(-500, -600),
		statement.GrossProfit:        pair(400, 400),
		statement.InterestExpense:    pair(-20, -25),
		statement.PreTaxProfit:       pair(90, 100),
		statement.TotalAssets:        pair(1800, 2200),
		statement.Equity:             pair(900, 1100),
		statement.TotalLiabilities:   pair(900, 1100),
		statement.CurrentAssets:      pair(700, 800),
		statement.CurrentLiabilities: pair(350, 400),
		statement.Inventory:          pair(100, 140),
		statement.Cash:               pair(50, 110),
		statement.Receivables:        pair(150, 250),
		statement.CurrentLTD:         pair(40, 50),
		statement.Depreciation:       pair(-30, -35),
	}
	v := Compute(items)

	assert.InDelta(t, 0.4, v.Get(1).Value, 1e-12)
	assert.InDelta(t, 0.1, v.Get(2).Value, 1e-12)
	assert.InDelta(t, 100.0/2000.0, v.Get(3).Value, 1e-12)
	assert.InDelta(t, 100.0/1000.0, v.Get(4).Value, 1e-12)
	assert.InDelta(t, 0.5, v.Get(5).Value, 1e-12)
	assert.InDelta(t, 1.0, v.Get(6).Value, 1e-12)
	assert.InDelta(t, 2.0, v.Get(7).Value, 1e-12)
	assert.InDelta(t, 660.0/400.0, v.Get(8).Value, 1e-12)
	assert.InDelta(t, 125.0/25.0, v.Get(9).Value, 1e-12)
	assert.InDelta(t, 160.0/75.0, v.Get(10).Value, 1e-12)
	assert.InDelta(t, 0.1, v.Get(11).Value, 1e-12)
	assert.InDelta(t, 600.0/120.0, v.Get(12).Value, 1e-12)
	assert.InDelta(t, 365.0/(1000.0/200.0), v.Get(13).Value, 1e-12)
	assert.InDelta(t, 0.5, v.Get(14).Value, 1e-12)
}

func TestCompute_Degenerate(t *testing.T) {
	items := statement.Items{
		statement.NetRevenue:      pair(0, 0),
		statement.GrossProfit:     pair(0, 10),
		statement.PreTaxProfit:    pair(5, 5),
		statement.Receivables:     pair(100, 100),
		statement.TotalAssets:     {Prior: some(500), Current: missing},
		statement.InterestExpense: {},
	}
	v := Compute(items)

	assert.False(t, v.Get(1).Valid, "zero revenue")
	assert.False(t, v.Get(5).Valid, "no liabilities or current total assets")
	assert.InDelta(t, 0.01, v.Get(3).Value, 1e-12, "average falls back to prior")
	assert.False(t, v.Get(9).Valid, "no interest expense")
	assert.False(t, v.Get(10).Valid, "no interest expense in denominator")
	assert.False(t, v.Get(13).Valid, "zero receivable turnover")
	assert.InDelta(t, 0.0, v.Get(14).Value, 1e-12)
	assert.True(t, v.Get(14).Valid)
}

func TestRatioVector_Names(t *testing.T) {
	v, _, err := FromStatements(scenario(), statement.DefaultAliases())
	require.NoError(t, err)

	named := v.Named()
	pos := v.Positional()
	assert.Len(t, named, model.RatioCount)
	assert.Len(t, pos, model.RatioCount)
	assert.Equal(t, named["Gross margin (X1)"], pos["X_1"])
	assert.Equal(t, named["Asset turnover (X14)"], pos["X_14"])
}
