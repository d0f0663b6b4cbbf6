package extract

import (
	"slices"
	"testing"

	"drug-crossref/internal/core/schema"
	"drug-crossref/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTradeName(t *testing.T) {
	tests := []struct {
		cell, trade, company string
	}{
		{"スリンダ錠28（あすか製薬㈱、9010401018375）", "スリンダ錠28", "あすか製薬㈱"},
		{"ファビハルタカプセル200mg (ノバルティスファーマ㈱, 1234)", "ファビハルタカプセル200mg", "ノバルティスファーマ㈱"},
		{"バビースモ硝子体内注射液（中外製薬㈱）", "バビースモ硝子体内注射液", "中外製薬㈱"},
		{"ブレンレップ点滴静注用100mg", "ブレンレップ点滴静注用100mg", ""},
		{"名前（会社，番号", "名前", "会社"},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			trade, company := SplitTradeName(tt.cell)
			assert.Equal(t, tt.trade, trade)
			assert.Equal(t, tt.company, company)
		})
	}
}

func testSheet() (common.Sheet, common.HeaderMapping) {
	sheet := common.Sheet{Name: "2024", Rows: [][]string{
		{"令和6年承認品目"},
		{"分野", "承認日", "No.", "販売名\n(会社名、法人番号)", "承認", "成分名", "効能・効果等", "会社名"},
		{"第1部会", "2024/3/26", "1", "スリンダ錠28（あすか製薬㈱、9010401018375）", "承認", "ドロスピレノン", "避妊", "nan"},
		{"nan", "NaT", "None", "", "", "", "", ""},
		{"第2部会", "2024/3/26", "2", "ブレンレップ点滴静注用100mg", "承認", "ベランタマブ マホドチン（遺伝子組換え）", "#N/A", "GSK㈱"},
		{"第2部会", "2024/3/26", "3", "", "承認", "孤立成分"},
		{"第3部会", "2024/6/24", "4", "バビースモ"},
	}}
	mapping, err := schema.New(0).Detect(sheet)
	if err != nil {
		panic(err)
	}
	return sheet, mapping
}

func TestClassified(t *testing.T) {
	sheet, mapping := testSheet()

	var statuses []Status
	var records []common.DrugRecord
	for rec, status := range Classified(sheet, mapping) {
		statuses = append(statuses, status)
		records = append(records, rec)
	}

	require.Equal(t, []Status{StatusRecord, StatusBlank, StatusRecord, StatusMalformed, StatusMalformed}, statuses)

	first := records[0]
	assert.Equal(t, "2024", first.Sheet)
	assert.Equal(t, 3, first.Row)
	assert.Equal(t, "スリンダ錠28", first.TradeName)
	assert.Equal(t, "あすか製薬㈱", first.Company)
	assert.Equal(t, "ドロスピレノン", first.Ingredient)
	assert.Equal(t, "第1部会", first.Category)
	assert.Equal(t, "避妊", first.Indication)

	second := records[2]
	assert.Equal(t, "ブレンレップ点滴静注用100mg", second.TradeName)
	assert.Equal(t, "GSK㈱", second.Company)
	assert.Empty(t, second.Indication)
}

func TestRecordsIsRestartable(t *testing.T) {
	sheet, mapping := testSheet()
	seq := Records(sheet, mapping)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestRecordsEarlyStop(t *testing.T) {
	sheet, mapping := testSheet()
	count := 0
	for range Records(sheet, mapping) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "malformed", StatusMalformed.String())
	assert.Equal(t, "unknown", Status(9).String())
}

func TestPackedCompanyColumn(t *testing.T) {
	sheet := common.Sheet{Name: "2023", Rows: [][]string{
		{"承認日", "販　　売　　名", "(　会社名、　法人番号)", "成 分 名"},
		{"2024/3/26", "スリンダ錠28", "（あすか製薬㈱、9010401018375）", "ドロスピレノン"},
		{"2024/3/26", "バビースモ硝子体内注射液", "中外製薬㈱,1234", "ファリシマブ（遺伝子組換え）"},
	}}
	mapping, err := schema.New(0).Detect(sheet)
	require.NoError(t, err)
	require.True(t, mapping.Has(common.FieldCompany))

	recs := slices.Collect(Records(sheet, mapping))
	require.Len(t, recs, 2)
	assert.Equal(t, "スリンダ錠28", recs[0].TradeName)
	assert.Equal(t, "あすか製薬㈱", recs[0].Company)
	assert.Equal(t, "中外製薬㈱", recs[1].Company)
}

func TestCompanyName(t *testing.T) {
	assert.Equal(t, "あすか製薬㈱", CompanyName(" (あすか製薬㈱、901) "))
	assert.Equal(t, "GSK㈱", CompanyName("GSK㈱"))
	assert.Equal(t, "", CompanyName(""))
}
