package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"credit-risk-backend/internal/model"
)

func table(header []string, rows ...[]string) *model.StatementTable {
	return &model.StatementTable{Header: header, Rows: rows}
}

func TestPickPeriodColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		prior  int
		cur    int
	}{
		{"ascending years", []string{"item", "2021", "2022", "2023"}, 2, 3},
		{"shuffled years", []string{"item", "2023", "2021", "2022"}, 3, 1},
		{"float headers", []string{"item", "2022.0", " 2023 "}, 1, 2},
		{"out of range ignored", []string{"item", "2022", "2023", "1500", "note"}, 1, 2},
		{"no numeric headers", []string{"item", "prior", "current", "notes"}, 2, 3},
		{"single year", []string{"item", "note", "2023"}, NoColumn, 2},
		{"single period column", []string{"item", "value"}, NoColumn, 1},
		{"label only", []string{"item"}, NoColumn, NoColumn},
		{"label column never a period", []string{"2020", "a", "b"}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c := PickPeriodColumns(tt.header)
			assert.Equal(t, tt.prior, p)
			assert.Equal(t, tt.cur, c)
		})
	}
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, model.Some(1234567), ParseAmount("1,234,567"))
	assert.Equal(t, model.Some(-42.5), ParseAmount(" -42.5 "))
	assert.Equal(t, model.Some(1000), ParseAmount("1 000"))
	assert.Equal(t, model.Missing, ParseAmount(""))
	assert.Equal(t, model.Missing, ParseAmount("n/a"))
	assert.Equal(t, model.Missing, ParseAmount("NaN"))
	assert.Equal(t, model.Missing, ParseAmount("Inf"))
}

func TestResolve_CaseInsensitiveSubstring(t *testing.T) {
	header := []string{"item", "2022", "2023"}
	want := model.PeriodPair{Prior: model.Some(100), Current: model.Some(200)}

	labels := []string{
		"Total assets",
		"TOTAL ASSETS (A+B)",
		"tOtAl AsSeTs",
	}
	for _, label := range labels {
		t.Run(label, func(t *testing.T) {
			tb := table(header, []string{"Cash", "1", "2"}, []string{label, "100", "200"})
			assert.Equal(t, want, Resolve(tb, []string{"Total assets"}))
		})
	}
}

func TestResolve_VietnameseLabels(t *testing.T) {
	tb := table([]string{"Chỉ tiêu", "2022", "2023"},
		[]string{"TỔNG TÀI SẢN", "1,000", "1,200"},
	)
	got := Resolve(tb, []string{"Tổng tài sản"})
	assert.Equal(t, model.Some(1000), got.Prior)
	assert.Equal(t, model.Some(1200), got.Current)

	// NFD 分解形式也应匹配
	decomposed := table([]string{"Chỉ tiêu", "2022", "2023"},
		[]string{norm.NFD.String("Tổng tài sản"), "5", "6"},
	)
	got = Resolve(decomposed, []string{"Tổng tài sản"})
	assert.Equal(t, model.Some(6), got.Current)
}

func TestResolve_FirstRowWins(t *testing.T) {
	tb := table([]string{"item", "2022", "2023"},
		[]string{"Revenue from sales", "10", "11"},
		[]string{"Net revenue", "20", "21"},
	)
	got := Resolve(tb, []string{"Net revenue", "Revenue from sales"})
	assert.Equal(t, model.Some(11), got.Current)
}

func TestResolve_Missing(t *testing.T) {
	tb := table([]string{"item", "2022", "2023"},
		[]string{"Inventory", "x", ""},
	)
	assert.Equal(t, model.PeriodPair{}, Resolve(tb, []string{"Total assets"}))

	got := Resolve(tb, []string{"inventory"})
	assert.False(t, got.Prior.Valid)
	assert.False(t, got.Current.Valid)

	assert.Equal(t, model.PeriodPair{}, Resolve(nil, []string{"x"}))
}

func TestResolve_ShortRow(t *testing.T) {
	tb := table([]string{"item", "2021", "2022", "2023"},
		[]string{"Equity", "1", "2"},
	)
	got := Resolve(tb, []string{"equity"})
	assert.Equal(t, model.Some(2), got.Prior)
	assert.False(t, got.Current.Valid)
}

func TestResolveAll(t *testing.T) {
	header := []string{"item", "2022", "2023"}
	s := model.Statements{
		BalanceSheet:    table(header, []string{"Total assets", "1000", "1200"}),
		IncomeStatement: table(header, []string{"Net revenue", "1800", "2000"}),
		CashFlow:        table(header),
	}
	items, err := ResolveAll(s, DefaultAliases())
	require.NoError(t, err)
	assert.Equal(t, model.Some(1200), items.Get(TotalAssets).Current)
	assert.Equal(t, model.Some(2000), items.Get(NetRevenue).Current)
	assert.False(t, items.Get(Depreciation).Current.Valid)
	assert.Len(t, items, len(DefaultAliases().Entries))

	s.CashFlow = nil
	_, err = ResolveAll(s, DefaultAliases())
	require.ErrorIs(t, err, ErrMissingStatement)
}

func TestDefaultAliases(t *testing.T) {
	set := DefaultAliases()
	seen := map[string]bool{}
	for _, e := range set.Entries {
		assert.False(t, seen[e.Key], "duplicate key %s", e.Key)
		seen[e.Key] = true
		assert.NotEmpty(t, e.Aliases)
		assert.Contains(t, model.Roles, e.Role)
	}
	e, ok := set.Lookup(Depreciation)
	require.True(t, ok)
	assert.Equal(t, model.CashFlow, e.Role)
	_, ok = set.Lookup("unknown")
	assert.False(t, ok)
}

func TestResolve_SkipsNonCurrentRows(t *testing.T) {
	header := []string{"item", "2022", "2023"}
	bs := table(header,
		[]string{"Non-current assets", "700", "800"},
		[]string{"Current assets", "300", "400"},
		[]string{"Total assets", "1000", "1200"},
		[]string{"Non current liabilities", "100", "150"},
		[]string{"NONCURRENT LIABILITIES (restated)", "90", "140"},
		[]string{"Total current liabilities", "500", "600"},
	)
	set := DefaultAliases()
	ca, _ := set.Lookup(CurrentAssets)
	cl, _ := set.Lookup(CurrentLiabilities)

	assert.Equal(t, model.PeriodPair{Prior: model.Some(300), Current: model.Some(400)}, Resolve(bs, ca.Aliases))
	assert.Equal(t, model.PeriodPair{Prior: model.Some(500), Current: model.Some(600)}, Resolve(bs, cl.Aliases))

	// 同一行先出现否定形式再出现肯定形式
	mixed := table(header, []string{"Non-current assets held for sale, current assets", "1", "2"})
	assert.Equal(t, 0, MatchRow(mixed, []string{"current assets"}))
	assert.Equal(t, -1, MatchRow(table(header, []string{"Non-current assets", "1", "2"}), []string{"current assets"}))
}
