package extract

import (
	"iter"
	"strings"

	"drug-crossref/internal/pkg/common"
)

// Status 每一資料列的分類
type Status int

const (
	StatusRecord    Status = iota // 有效紀錄
	StatusBlank                   // 成分名與販売名皆空白，視為分隔列
	StatusMalformed               // 只缺其中一個必要欄位
)

func (s Status) String() string {
	switch s {
	case StatusRecord:
		return "record"
	case StatusBlank:
		return "blank"
	case StatusMalformed:
		return "malformed"
	}
	return "unknown"
}

// 來源試算表中代表缺值的字串
var missingMarkers = map[string]struct{}{
	"nan":  {},
	"NaN":  {},
	"None": {},
	"null": {},
	"#N/A": {},
	"NaT":  {},
}

// Classified 逐列輸出紀錄與其分類。可重複迭代，不修改輸入。
func Classified(sheet common.Sheet, mapping common.HeaderMapping) iter.Seq2[common.DrugRecord, Status] {
	return func(yield func(common.DrugRecord, Status) bool) {
		for i := mapping.HeaderRow + 1; i < len(sheet.Rows); i++ {
			rec, status := buildRecord(sheet.Name, i+1, sheet.Rows[i], mapping)
			if !yield(rec, status) {
				return
			}
		}
	}
}

// Records 只輸出有效紀錄
func Records(sheet common.Sheet, mapping common.HeaderMapping) iter.Seq[common.DrugRecord] {
	return func(yield func(common.DrugRecord) bool) {
		for rec, status := range Classified(sheet, mapping) {
			if status != StatusRecord {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func buildRecord(sheetName string, rowNum int, row []string, mapping common.HeaderMapping) (common.DrugRecord, Status) {
	get := func(f common.SourceField) string {
		col, ok := mapping.Columns[f]
		if !ok || col.Index >= len(row) {
			return ""
		}
		return cleanCell(row[col.Index])
	}

	rec := common.DrugRecord{
		Sheet:        sheetName,
		Row:          rowNum,
		Category:     get(common.FieldCategory),
		ApprovalDate: get(common.FieldApprovalDate),
		SequenceNo:   get(common.FieldSequenceNo),
		Ingredient:   get(common.FieldIngredient),
		ApprovalType: get(common.FieldApprovalType),
		Indication:   get(common.FieldIndication),
	}

	tradeName, company := SplitTradeName(get(common.FieldTradeName))
	rec.TradeName = tradeName
	rec.Company = company
	if rec.Company == "" {
		rec.Company = CompanyName(get(common.FieldCompany))
	}

	switch {
	case rec.Ingredient == "" && rec.TradeName == "":
		return rec, StatusBlank
	case rec.Ingredient == "" || rec.TradeName == "":
		return rec, StatusMalformed
	}
	return rec, StatusRecord
}

// cleanCell 只去除前後空白，保留 ㈱ 等字元
func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := missingMarkers[v]; ok {
		return ""
	}
	return v
}

// SplitTradeName 將「販売名（会社名、法人番号）」拆成品名與公司名
func SplitTradeName(cell string) (tradeName, company string) {
	open := strings.IndexAny(cell, "(（")
	if open < 0 {
		return strings.TrimSpace(cell), ""
	}
	return strings.TrimSpace(cell[:open]), CompanyName(cell[open:])
}

// CompanyName 取出「（会社名、法人番号）」中的会社名；沒有括號時只切分隔符
func CompanyName(cell string) string {
	inner := strings.TrimSpace(cell)
	// 跳過開括號本身（全形為 3 bytes）
	switch {
	case strings.HasPrefix(inner, "（"):
		inner = inner[len("（"):]
	case strings.HasPrefix(inner, "("):
		inner = inner[1:]
	}
	if end := strings.IndexAny(inner, ")）"); end >= 0 {
		inner = inner[:end]
	}
	if cut := strings.IndexAny(inner, "、,，"); cut >= 0 {
		inner = inner[:cut]
	}
	return strings.TrimSpace(inner)
}
