package model

// Role 报表类型
type Role string

const (
	BalanceSheet    Role = "balance_sheet"
	IncomeStatement Role = "income_statement"
	CashFlow        Role = "cash_flow"
)

// Roles 三张报表，按固定顺序
var Roles = []Role{BalanceSheet, IncomeStatement, CashFlow}

// SheetName 上传 Excel 中对应的工作表名
func (r Role) SheetName() string {
	switch r {
	case BalanceSheet:
		return "CDKT"
	case IncomeStatement:
		return "BCTN"
	case CashFlow:
		return "LCTT"
	}
	return ""
}

// StatementTable 报表：第0列为科目名，其余列为各期数据
type StatementTable struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cell 安全获取单元格，越界返回空串
func (t *StatementTable) Cell(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Statements 一次评估所需的三张报表，nil 表示缺失
type Statements struct {
	BalanceSheet    *StatementTable `json:"balance_sheet"`
	IncomeStatement *StatementTable `json:"income_statement"`
	CashFlow        *StatementTable `json:"cash_flow"`
}

// Table 按类型取报表
func (s Statements) Table(r Role) *StatementTable {
	switch r {
	case BalanceSheet:
		return s.BalanceSheet
	case IncomeStatement:
		return s.IncomeStatement
	case CashFlow:
		return s.CashFlow
	}
	return nil
}

// Set 按类型设置报表
func (s *Statements) Set(r Role, t *StatementTable) {
	switch r {
	case BalanceSheet:
		s.BalanceSheet = t
	case IncomeStatement:
		s.IncomeStatement = t
	case CashFlow:
		s.CashFlow = t
	}
}
