package statement

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"credit-risk-backend/internal/model"
)

// 年份列的合理范围
const (
	MinYear = 1990
	MaxYear = 2100
)

// ErrMissingStatement 缺少整张报表，评估无法进行
var ErrMissingStatement = errors.New("缺少财务报表")

// NoColumn 表示没有可用的期间列
const NoColumn = -1

// Items 标准科目键 -> 两期取值
type Items map[string]model.PeriodPair

// Get 取科目，不存在时两期均缺失
func (it Items) Get(key string) model.PeriodPair {
	return it[key]
}

// PickPeriodColumns 选出最近两期的列下标 (prior, current)
// 优先使用表头为年份的列；没有年份列时退回到最右侧两列
func PickPeriodColumns(header []string) (int, int) {
	type yearCol struct {
		year int
		col  int
	}
	var years []yearCol
	for c := 1; c < len(header); c++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(header[c]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		y := int(math.Trunc(f))
		if y >= MinYear && y <= MaxYear {
			years = append(years, yearCol{year: y, col: c})
		}
	}

	if len(years) > 0 {
		sort.SliceStable(years, func(i, j int) bool { return years[i].year < years[j].year })
		cur := years[len(years)-1].col
		if len(years) == 1 {
			return NoColumn, cur
		}
		return years[len(years)-2].col, cur
	}

	// 没有年份表头：取最右侧两列
	switch n := len(header) - 1; {
	case n >= 2:
		return len(header) - 2, len(header) - 1
	case n == 1:
		return NoColumn, 1
	}
	return NoColumn, NoColumn
}

// ParseAmount 单元格文本转数值，去掉千分位逗号和空白；无法解析视为缺失
func ParseAmount(cell string) model.Amount {
	s := strings.ReplaceAll(cell, ",", "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return model.Missing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Missing
	}
	return model.Some(f)
}

func foldLabel(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// negated 别名前紧跟 "non-" / "non " / "non" 时不算命中，例如 "Non-current assets" 不匹配 "Current assets"
func negated(prefix string) bool {
	p := strings.TrimRight(prefix, " -")
	if !strings.HasSuffix(p, "non") {
		return false
	}
	head := strings.TrimSuffix(p, "non")
	return head == "" || !isLetter(head[len(head)-1])
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// containsAlias 科目名中存在一处未被否定前缀修饰的别名
func containsAlias(label, alias string) bool {
	for off := 0; off <= len(label)-len(alias); {
		i := strings.Index(label[off:], alias)
		if i < 0 {
			return false
		}
		if !negated(label[:off+i]) {
			return true
		}
		off += i + 1
	}
	return false
}

// MatchRow 返回第一行科目名包含任一别名的行号，没有则返回 -1
func MatchRow(t *model.StatementTable, aliases []string) int {
	if t == nil || len(aliases) == 0 {
		return -1
	}
	folded := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if fa := foldLabel(a); fa != "" {
			folded = append(folded, fa)
		}
	}
	for i := range t.Rows {
		label := foldLabel(t.Cell(i, 0))
		if label == "" {
			continue
		}
		for _, a := range folded {
			if containsAlias(label, a) {
				return i
			}
		}
	}
	return -1
}

// Resolve 在报表中查找科目并取最近两期的值
func Resolve(t *model.StatementTable, aliases []string) model.PeriodPair {
	if t == nil {
		return model.PeriodPair{}
	}
	row := MatchRow(t, aliases)
	if row < 0 {
		return model.PeriodPair{}
	}
	prior, cur := PickPeriodColumns(t.Header)
	return model.PeriodPair{
		Prior:   ParseAmount(t.Cell(row, prior)),
		Current: ParseAmount(t.Cell(row, cur)),
	}
}

// ResolveAll 按别名表逐项解析；缺少整张报表时返回 ErrMissingStatement
func ResolveAll(s model.Statements, set AliasSet) (Items, error) {
	for _, r := range model.Roles {
		if s.Table(r) == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStatement, r)
		}
	}
	items := make(Items, len(set.Entries))
	for _, e := range set.Entries {
		items[e.Key] = Resolve(s.Table(e.Role), e.Aliases)
	}
	return items, nil
}
