package statement

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"credit-risk-backend/internal/model"
)

// ErrBadWorkbook 上传文件不是可读取的 Excel
var ErrBadWorkbook = errors.New("读取Excel失败")

// LoadWorkbook 从 Excel 读取三张报表（工作表 CDKT / BCTN / LCTT）
// 缺少的工作表对应的报表为 nil，由 ResolveAll 报错
func LoadWorkbook(r io.Reader) (model.Statements, error) {
	var out model.Statements

	f, err := excelize.OpenReader(r)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	for _, role := range model.Roles {
		name := findSheet(sheets, role)
		if name == "" {
			continue
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return out, fmt.Errorf("%w: 工作表 %s: %v", ErrBadWorkbook, name, err)
		}
		out.Set(role, tableFromRows(rows))
	}
	return out, nil
}

// findSheet 工作表名匹配 CDKT 或 balance_sheet 等，大小写不敏感
func findSheet(sheets []string, role model.Role) string {
	for _, s := range sheets {
		n := strings.TrimSpace(s)
		if strings.EqualFold(n, role.SheetName()) || strings.EqualFold(n, string(role)) {
			return s
		}
	}
	return ""
}

// tableFromRows 第一行作为表头，其余为数据行
func tableFromRows(rows [][]string) *model.StatementTable {
	t := &model.StatementTable{}
	if len(rows) == 0 {
		return t
	}
	t.Header = rows[0]
	t.Rows = rows[1:]
	return t
}
