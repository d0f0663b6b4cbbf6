package resolver

import (
	"context"

	"drug-crossref/internal/pkg/common"
)

// Source 遠端名稱來源
type Source interface {
	// Name 來源名稱，用於紀錄與停用清單
	Name() string

	// Supports 是否處理該種類的名稱
	Supports(kind common.FieldKind) bool

	// Lookup 查詢名稱；找不到時回傳 ErrLookupMiss
	Lookup(ctx context.Context, raw string, kind common.FieldKind) (common.ResolvedName, error)
}
