package pipeline

import (
	"time"

	"drug-crossref/internal/pkg/common"
)

// SkippedSheet 因缺少必要欄位而略過的工作表
type SkippedSheet struct {
	Name    string               `json:"name"`
	Reason  string               `json:"reason"`
	Missing []common.SourceField `json:"missing_fields"`
}

// UnresolvedName 所有來源都無法解析的名稱
type UnresolvedName struct {
	Sheet string           `json:"sheet"`
	Row   int              `json:"row"`
	Kind  common.FieldKind `json:"kind"`
	Raw   string           `json:"raw"`
}

// Summary 每次執行附帶的稽核摘要
type Summary struct {
	RunID           string           `json:"run_id"`
	Strategy        string           `json:"strategy"`
	ProcessedSheets []string         `json:"processed_sheets"`
	SkippedSheets   []SkippedSheet   `json:"skipped_sheets"`
	RowsRead        int              `json:"rows_read"`
	BlankRows       int              `json:"blank_rows"`
	MalformedRows   int              `json:"malformed_rows"`
	Records         int              `json:"records"`
	Matched         int              `json:"matched"`
	Unmatched       int              `json:"unmatched"`
	ExactMatches    int              `json:"exact_matches"`
	FuzzyMatches    int              `json:"fuzzy_matches"`
	Unresolved      []UnresolvedName `json:"unresolved"`
	DisabledSources []string         `json:"disabled_sources"`
	StartedAt       time.Time        `json:"started_at"`
	Duration        time.Duration    `json:"duration"`
}

// Result 一次執行的輸出
type Result struct {
	Rows    []common.ResultRow `json:"rows"`
	Summary Summary            `json:"summary"`
}

// Err 沒有任何工作表可處理時回傳 SchemaMismatch
func (r *Result) Err() error {
	if len(r.Summary.ProcessedSheets) > 0 {
		return nil
	}
	return common.ErrSchemaMismatch
}
