package schema

import (
	"fmt"
	"strings"
	"unicode"

	"drug-crossref/internal/pkg/common"

	"golang.org/x/text/unicode/norm"
)

// DefaultHeaderScanRows 預設掃描前幾列尋找標題列
const DefaultHeaderScanRows = 10

// SchemaMismatchError 工作表缺少必要欄位
type SchemaMismatchError struct {
	Sheet     string
	HeaderRow int // 最接近的候選列，-1 表示沒有任何候選
	Missing   []common.SourceField
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("sheet %q: missing mandatory columns: %s", e.Sheet, common.FieldsToString(e.Missing))
}

// rule 依序比對的標題規則；h 為整理後標題，base 為第一個括號前的部分
type rule struct {
	field common.SourceField
	match func(h, base string) bool
}

// Normalizer 將原始標題列對應到標準欄位
type Normalizer struct {
	rules    []rule
	scanRows int
}

// New 建立 Normalizer，scanRows <= 0 時使用預設值
func New(scanRows int) *Normalizer {
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}
	return &Normalizer{rules: defaultRules(), scanRows: scanRows}
}

// 規則順序即優先順序，較具體的放前面
func defaultRules() []rule {
	return []rule{
		{common.FieldApprovalDate, func(h, _ string) bool {
			return strings.Contains(h, "承認日")
		}},
		{common.FieldApprovalType, func(_, base string) bool {
			return base == "承認" || strings.Contains(base, "承認区分") || strings.Contains(base, "承認・一変")
		}},
		{common.FieldTradeName, func(h, _ string) bool {
			return hasAnyPrefix(h, "販売名", "品名", "商品名")
		}},
		{common.FieldCompany, func(h, _ string) bool {
			return containsAny(h, "会社名", "申請者", "企業名")
		}},
		{common.FieldIngredient, func(h, _ string) bool {
			return strings.HasPrefix(h, "成分名") || containsAny(h, "一般名", "有効成分名")
		}},
		{common.FieldIndication, func(h, _ string) bool {
			return containsAny(h, "効能", "効果")
		}},
		{common.FieldCategory, func(h, _ string) bool {
			return containsAny(h, "分野", "薬効分類")
		}},
		{common.FieldSequenceNo, func(_, base string) bool {
			switch strings.ToLower(base) {
			case "no", "no.", "番号", "整理番号":
				return true
			}
			return false
		}},
	}
}

// NormalizeHeader 折疊全形字元並移除所有空白（含全形空白與換行）
func NormalizeHeader(raw string) string {
	folded := norm.NFKC.String(raw)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// baseText 取第一個括號之前的文字
func baseText(h string) string {
	if i := strings.IndexAny(h, "(（"); i >= 0 {
		return h[:i]
	}
	return h
}

// Classify 回傳單一標題對應的欄位
func (n *Normalizer) Classify(raw string) (common.SourceField, bool) {
	h := NormalizeHeader(raw)
	if h == "" {
		return "", false
	}
	base := baseText(h)
	for _, r := range n.rules {
		if r.match(h, base) {
			return r.field, true
		}
	}
	return "", false
}

// Map 將一列標題轉為 HeaderMapping，同一欄位以欄序最前者為準
func (n *Normalizer) Map(header []string) common.HeaderMapping {
	mapping := common.HeaderMapping{Columns: make(map[common.SourceField]common.HeaderColumn)}
	for idx, raw := range header {
		field, ok := n.Classify(raw)
		if !ok || mapping.Has(field) {
			continue
		}
		mapping.Columns[field] = common.HeaderColumn{Raw: raw, Index: idx, Field: field}
	}
	return mapping
}

// Detect 在前幾列中找出第一個具備所有必要欄位的標題列
func (n *Normalizer) Detect(sheet common.Sheet) (common.HeaderMapping, error) {
	limit := n.scanRows
	if len(sheet.Rows) < limit {
		limit = len(sheet.Rows)
	}

	bestRow := -1
	var bestMissing []common.SourceField
	for i := 0; i < limit; i++ {
		mapping := n.Map(sheet.Rows[i])
		mapping.HeaderRow = i
		missing := mapping.Missing()
		if len(missing) == 0 {
			return mapping, nil
		}
		if bestRow < 0 || len(missing) < len(bestMissing) {
			bestRow = i
			bestMissing = missing
		}
	}

	if bestRow < 0 {
		bestMissing = append([]common.SourceField(nil), common.MandatoryFields...)
	}
	return common.HeaderMapping{}, &SchemaMismatchError{
		Sheet:     sheet.Name,
		HeaderRow: bestRow,
		Missing:   bestMissing,
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
