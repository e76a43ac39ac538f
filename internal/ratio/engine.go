// Package ratio 从三张报表的科目取值计算14个财务指标（X1-X14）
package ratio

import (
	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/statement"
)

// DaysPerYear 应收账款周转天数的年天数
const DaysPerYear = 365.0

// Avg 两期平均：仅一期有值时取该值，都缺失时缺失
func Avg(a, b model.Amount) model.Amount {
	switch {
	case !a.Valid && !b.Valid:
		return model.Missing
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	}
	return model.Some((a.Value + b.Value) / 2.0)
}

// Div 安全除法：分母缺失或为0时结果缺失
func Div(a, b model.Amount) model.Amount {
	if !a.Valid || !b.Valid || b.Value == 0 {
		return model.Missing
	}
	return model.Some(a.Value / b.Value)
}

// Compute 由解析后的科目计算指标
func Compute(items statement.Items) model.RatioVector {
	cur := func(key string) model.Amount { return items.Get(key).Current }
	avg := func(key string) model.Amount {
		p := items.Get(key)
		return Avg(p.Current, p.Prior)
	}

	revenue := cur(statement.NetRevenue)
	grossProfit := cur(statement.GrossProfit)
	preTax := cur(statement.PreTaxProfit)
	totalAssets := cur(statement.TotalAssets)
	equity := cur(statement.Equity)
	liabilities := cur(statement.TotalLiabilities)
	currentAssets := cur(statement.CurrentAssets)
	currentLiab := cur(statement.CurrentLiabilities)
	inventory := cur(statement.Inventory)
	cash := cur(statement.Cash)

	// 费用类科目在报表中可能以负数列示
	costOfSales := cur(statement.CostOfSales).Abs()
	interest := cur(statement.InterestExpense).Abs()
	depreciation := cur(statement.Depreciation).Abs()

	avgAssets := avg(statement.TotalAssets)
	avgEquity := avg(statement.Equity)
	avgInventory := avg(statement.Inventory)
	avgReceivables := avg(statement.Receivables)

	ebit := preTax.Add(interest)
	currentLTD := model.Some(cur(statement.CurrentLTD).Or(0))

	debtService := model.Missing
	if interest.Valid {
		debtService = interest.Add(currentLTD)
	}

	days := model.Missing
	if turnover := Div(revenue, avgReceivables); turnover.Valid && turnover.Value != 0 {
		days = Div(model.Some(DaysPerYear), turnover)
	}

	// 折旧缺失按0计
	serviceable := ebit.Add(model.Some(depreciation.Or(0)))

	// 顺序与 model.RatioNames 一致
	return model.RatioVector{
		Div(grossProfit, revenue),
		Div(preTax, revenue),
		Div(preTax, avgAssets),
		Div(preTax, avgEquity),
		Div(liabilities, totalAssets),
		Div(liabilities, equity),
		Div(currentAssets, currentLiab),
		Div(currentAssets.Sub(inventory), currentLiab),
		Div(ebit, interest),
		Div(serviceable, debtService),
		Div(cash, equity),
		Div(costOfSales, avgInventory),
		days,
		Div(revenue, avgAssets),
	}
}

// FromStatements 解析三张报表并计算指标
func FromStatements(s model.Statements, set statement.AliasSet) (model.RatioVector, statement.Items, error) {
	items, err := statement.ResolveAll(s, set)
	if err != nil {
		return model.RatioVector{}, nil, err
	}
	return Compute(items), items, nil
}
