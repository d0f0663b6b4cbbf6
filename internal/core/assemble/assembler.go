package assemble

import (
	"strconv"

	"drug-crossref/internal/pkg/common"
)

// NotMarketed 台灣確認沒有對應許可證時填入的值
const NotMarketed = "台灣未上市"

// 台灣狀態欄位值
const (
	StatusMarketed    = "已上市"
	StatusNotMarketed = NotMarketed
)

// Columns 固定輸出欄位，順序即匯出順序
var Columns = []string{
	"sheet", "row", "category", "approval_date", "sequence_no",
	"trade_name", "trade_name_en", "company",
	"ingredient", "ingredient_en", "ingredient_zh", "name_source",
	"approval_type", "indication",
	"tw_status", "match_method", "similarity_score",
	"tw_ingredient", "tw_product_name", "tw_dosage_form", "tw_manufacturer", "tw_license_number",
}

// Item 一筆紀錄經過解析與比對後的結果
type Item struct {
	Record     common.DrugRecord
	Ingredient common.ResolvedName
	TradeName  common.ResolvedName
	Match      common.MatchResult
}

// Rows 每個對應到的許可證一列；沒有對應時輸出一列未上市
func Rows(item Item) []common.ResultRow {
	base := common.ResultRow{
		Sheet:           item.Record.Sheet,
		Row:             item.Record.Row,
		Category:        item.Record.Category,
		ApprovalDate:    item.Record.ApprovalDate,
		SequenceNo:      item.Record.SequenceNo,
		TradeName:       item.Record.TradeName,
		TradeNameEN:     item.TradeName.ResolvedText,
		Company:         item.Record.Company,
		Ingredient:      item.Record.Ingredient,
		IngredientEN:    item.Ingredient.ResolvedText,
		IngredientZH:    item.Ingredient.ChineseText,
		NameSource:      string(item.Ingredient.Source),
		ApprovalType:    item.Record.ApprovalType,
		Indication:      item.Record.Indication,
		MatchMethod:     string(item.Match.Method),
		SimilarityScore: item.Match.SimilarityScore,
	}

	if !item.Match.Matched || len(item.Match.RegistryEntries) == 0 {
		row := base
		row.TWStatus = StatusNotMarketed
		row.TWIngredient = NotMarketed
		row.TWProductName = NotMarketed
		row.TWDosageForm = NotMarketed
		row.TWManufacturer = NotMarketed
		row.TWLicenseNumber = NotMarketed
		return []common.ResultRow{row}
	}

	rows := make([]common.ResultRow, 0, len(item.Match.RegistryEntries))
	for _, e := range item.Match.RegistryEntries {
		row := base
		row.TWStatus = StatusMarketed
		row.TWIngredient = e.Ingredient
		row.TWProductName = e.ProductName
		row.TWDosageForm = e.DosageForm
		row.TWManufacturer = e.Manufacturer
		row.TWLicenseNumber = e.LicenseNumber
		rows = append(rows, row)
	}
	return rows
}

// Assemble 依輸入順序展開所有項目
func Assemble(items []Item) []common.ResultRow {
	rows := make([]common.ResultRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, Rows(item)...)
	}
	return rows
}

// Values 依 Columns 順序輸出字串值
func Values(r common.ResultRow) []string {
	return []string{
		r.Sheet, strconv.Itoa(r.Row), r.Category, r.ApprovalDate, r.SequenceNo,
		r.TradeName, r.TradeNameEN, r.Company,
		r.Ingredient, r.IngredientEN, r.IngredientZH, r.NameSource,
		r.ApprovalType, r.Indication,
		r.TWStatus, r.MatchMethod, common.FormatScore(r.SimilarityScore),
		r.TWIngredient, r.TWProductName, r.TWDosageForm, r.TWManufacturer, r.TWLicenseNumber,
	}
}
