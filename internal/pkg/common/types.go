package common

// SourceField 標準欄位
type SourceField string

const (
	FieldCategory     SourceField = "category"
	FieldApprovalDate SourceField = "approval_date"
	FieldSequenceNo   SourceField = "sequence_no"
	FieldTradeName    SourceField = "trade_name"
	FieldCompany      SourceField = "company"
	FieldIngredient   SourceField = "ingredient"
	FieldApprovalType SourceField = "approval_type"
	FieldIndication   SourceField = "indication"
)

// MandatoryFields 工作表必須具備的欄位
var MandatoryFields = []SourceField{FieldIngredient, FieldTradeName, FieldApprovalDate}

// HeaderColumn 一個被對應到標準欄位的原始欄
type HeaderColumn struct {
	Raw   string      `json:"raw"`
	Index int         `json:"index"`
	Field SourceField `json:"field"`
}

// HeaderMapping 原始標題列對應結果，每個欄位最多一欄
type HeaderMapping struct {
	HeaderRow int                         `json:"header_row"` // 0-based
	Columns   map[SourceField]HeaderColumn `json:"columns"`
}

// Has 是否已對應指定欄位
func (m HeaderMapping) Has(f SourceField) bool {
	_, ok := m.Columns[f]
	return ok
}

// Missing 回傳尚未對應的必要欄位
func (m HeaderMapping) Missing() []SourceField {
	var missing []SourceField
	for _, f := range MandatoryFields {
		if !m.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Sheet 一個工作表的原始資料
type Sheet struct {
	Name string
	Rows [][]string
}

// DrugRecord 日本新藥核准紀錄
type DrugRecord struct {
	Sheet        string `json:"sheet"`
	Row          int    `json:"row"` // 1-based
	Category     string `json:"category"`
	ApprovalDate string `json:"approval_date"`
	SequenceNo   string `json:"sequence_no"`
	TradeName    string `json:"trade_name"`
	Company      string `json:"company"`
	Ingredient   string `json:"ingredient"`
	ApprovalType string `json:"approval_type"`
	Indication   string `json:"indication"`
}

// FieldKind 名稱種類
type FieldKind string

const (
	KindIngredient FieldKind = "ingredient"
	KindTradeName  FieldKind = "trade_name"
)

// Valid 檢查種類
func (k FieldKind) Valid() bool {
	return k == KindIngredient || k == KindTradeName
}

// NameSource 名稱來源
type NameSource string

const (
	SourceDictionary         NameSource = "dictionary"
	SourceStructuredLookup   NameSource = "structured_lookup"
	SourceTranslationService NameSource = "translation_service"
	SourceUnresolved         NameSource = "unresolved"
)

// ResolvedName 名稱解析結果
type ResolvedName struct {
	RawText      string     `json:"raw_text"`
	ResolvedText string     `json:"resolved_text"`
	ChineseText  string     `json:"chinese_text,omitempty"`
	Source       NameSource `json:"source"`
}

// Unresolved 建立原文透傳結果
func Unresolved(raw string) ResolvedName {
	return ResolvedName{RawText: raw, ResolvedText: raw, Source: SourceUnresolved}
}

// RegistryEntry 台灣藥品許可證
type RegistryEntry struct {
	Ingredient    string `json:"ingredient"`
	ProductName   string `json:"product_name"`
	DosageForm    string `json:"dosage_form"`
	Manufacturer  string `json:"manufacturer"`
	LicenseNumber string `json:"license_number"`
}

// MatchMethod 比對方式
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchFuzzy MatchMethod = "fuzzy"
	MatchNone  MatchMethod = "none"
)

// MatchResult 比對結果
type MatchResult struct {
	QueryIngredient   string          `json:"query_ingredient"`
	Matched           bool            `json:"matched"`
	RegistryEntries   []RegistryEntry `json:"registry_entries"`
	SimilarityScore   *float64        `json:"similarity_score"`
	Method            MatchMethod     `json:"method"`
	MatchedIngredient string          `json:"matched_ingredient,omitempty"`
}

// ResultRow 輸出表格的一列
type ResultRow struct {
	Sheet            string   `json:"sheet"`
	Row              int      `json:"row"`
	Category         string   `json:"category"`
	ApprovalDate     string   `json:"approval_date"`
	SequenceNo       string   `json:"sequence_no"`
	TradeName        string   `json:"trade_name"`
	TradeNameEN      string   `json:"trade_name_en"`
	Company          string   `json:"company"`
	Ingredient       string   `json:"ingredient"`
	IngredientEN     string   `json:"ingredient_en"`
	IngredientZH     string   `json:"ingredient_zh"`
	NameSource       string   `json:"name_source"`
	ApprovalType     string   `json:"approval_type"`
	Indication       string   `json:"indication"`
	TWStatus         string   `json:"tw_status"`
	MatchMethod      string   `json:"match_method"`
	SimilarityScore  *float64 `json:"similarity_score"`
	TWIngredient     string   `json:"tw_ingredient"`
	TWProductName    string   `json:"tw_product_name"`
	TWDosageForm     string   `json:"tw_dosage_form"`
	TWManufacturer   string   `json:"tw_manufacturer"`
	TWLicenseNumber  string   `json:"tw_license_number"`
}
