package statement

import "credit-risk-backend/internal/model"

// 标准科目键
const (
	NetRevenue         = "net_revenue"
	CostOfSales        = "cost_of_sales"
	GrossProfit        = "gross_profit"
	InterestExpense    = "interest_expense"
	PreTaxProfit       = "pretax_profit"
	TotalAssets        = "total_assets"
	Equity             = "equity"
	TotalLiabilities   = "total_liabilities"
	CurrentAssets      = "current_assets"
	CurrentLiabilities = "current_liabilities"
	Inventory          = "inventory"
	Cash               = "cash"
	Receivables        = "receivables"
	CurrentLTD         = "current_ltd"
	Depreciation       = "depreciation"
)

// AliasEntry 一个标准科目在某张报表中可接受的名称片段（大小写不敏感）
type AliasEntry struct {
	Key     string     `json:"key"`
	Role    model.Role `json:"role"`
	Aliases []string   `json:"aliases"`
}

// AliasSet 有序的科目别名表
type AliasSet struct {
	Version string       `json:"version"`
	Entries []AliasEntry `json:"entries"`
}

// Lookup 按科目键查找
func (s AliasSet) Lookup(key string) (AliasEntry, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return AliasEntry{}, false
}

// AliasVersion 默认别名表版本
const AliasVersion = "2024.1"

// DefaultAliases 默认别名表：越南会计准则（VAS）报表科目 + 英文科目
func DefaultAliases() AliasSet {
	return AliasSet{
		Version: AliasVersion,
		Entries: []AliasEntry{
			// 利润表
			{Key: NetRevenue, Role: model.IncomeStatement, Aliases: []string{
				"Doanh thu thuần", "Doanh thu bán hàng", "Doanh thu thuần về bán hàng và cung cấp dịch vụ",
				"Net revenue", "Net sales", "Total revenue",
			}},
			{Key: CostOfSales, Role: model.IncomeStatement, Aliases: []string{
				"Giá vốn hàng bán",
				"Cost of goods sold", "Cost of sales", "Cost of revenue",
			}},
			{Key: GrossProfit, Role: model.IncomeStatement, Aliases: []string{
				"Lợi nhuận gộp",
				"Gross profit",
			}},
			{Key: InterestExpense, Role: model.IncomeStatement, Aliases: []string{
				"Chi phí lãi vay", "Chi phí tài chính (trong đó: chi phí lãi vay)",
				"Interest expense",
			}},
			{Key: PreTaxProfit, Role: model.IncomeStatement, Aliases: []string{
				"Tổng lợi nhuận kế toán trước thuế", "Lợi nhuận trước thuế", "Lợi nhuận trước thuế thu nhập DN",
				"Profit before tax", "Income before tax", "Earnings before tax",
			}},

			// 资产负债表
			{Key: TotalAssets, Role: model.BalanceSheet, Aliases: []string{
				"Tổng tài sản",
				"Total assets",
			}},
			{Key: Equity, Role: model.BalanceSheet, Aliases: []string{
				"Vốn chủ sở hữu", "Vốn CSH",
				"Total equity", "Owners' equity", "Shareholders' equity", "Stockholders' equity",
			}},
			{Key: TotalLiabilities, Role: model.BalanceSheet, Aliases: []string{
				"Nợ phải trả",
				"Total liabilities",
			}},
			{Key: CurrentAssets, Role: model.BalanceSheet, Aliases: []string{
				"Tài sản ngắn hạn",
				"Current assets",
			}},
			{Key: CurrentLiabilities, Role: model.BalanceSheet, Aliases: []string{
				"Nợ ngắn hạn",
				"Current liabilities",
			}},
			{Key: Inventory, Role: model.BalanceSheet, Aliases: []string{
				"Hàng tồn kho",
				"Inventories", "Inventory",
			}},
			{Key: Cash, Role: model.BalanceSheet, Aliases: []string{
				"Tiền và các khoản tương đương tiền", "Tiền và tương đương tiền",
				"Cash and cash equivalents", "Cash and equivalents",
			}},
			{Key: Receivables, Role: model.BalanceSheet, Aliases: []string{
				"Phải thu ngắn hạn của khách hàng", "Phải thu khách hàng",
				"Accounts receivable", "Trade receivables",
			}},
			{Key: CurrentLTD, Role: model.BalanceSheet, Aliases: []string{
				"Nợ dài hạn đến hạn trả", "Nợ dài hạn đến hạn",
				"Current portion of long-term debt", "Current maturities of long-term debt",
			}},

			// 现金流量表
			{Key: Depreciation, Role: model.CashFlow, Aliases: []string{
				"Khấu hao TSCĐ", "Khấu hao", "Chi phí khấu hao",
				"Depreciation",
			}},
		},
	}
}
