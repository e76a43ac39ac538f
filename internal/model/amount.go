package model

import (
	"encoding/json"
	"math"
)

// Amount 报表数值，Valid=false 表示缺失
type Amount struct {
	Value float64
	Valid bool
}

// Missing 缺失值
var Missing = Amount{}

// Some 构造有效数值，非有限数视为缺失
func Some(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Amount{Value: v, Valid: true}
}

// Float 返回数值，缺失时返回 NaN
func (a Amount) Float() float64 {
	if !a.Valid {
		return math.NaN()
	}
	return a.Value
}

// Or 缺失时返回默认值
func (a Amount) Or(def float64) float64 {
	if !a.Valid {
		return def
	}
	return a.Value
}

// Abs 取绝对值
func (a Amount) Abs() Amount {
	if !a.Valid {
		return Missing
	}
	return Some(math.Abs(a.Value))
}

// Add 两数相加，任一缺失则缺失
func (a Amount) Add(b Amount) Amount {
	if !a.Valid || !b.Valid {
		return Missing
	}
	return Some(a.Value + b.Value)
}

// Sub 两数相减，任一缺失则缺失
func (a Amount) Sub(b Amount) Amount {
	if !a.Valid || !b.Valid {
		return Missing
	}
	return Some(a.Value - b.Value)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Missing
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Some(v)
	return nil
}

// PeriodPair 某个科目最近两期的取值
type PeriodPair struct {
	Prior   Amount `json:"prior"`
	Current Amount `json:"current"`
}
