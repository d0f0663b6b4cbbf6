package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"drug-crossref/internal/pkg/common"
)

// Store 名稱解析結果的快取，未命中時回傳 common.ErrCacheMiss
type Store interface {
	Get(ctx context.Context, kind common.FieldKind, raw string) (common.ResolvedName, error)
	Set(ctx context.Context, kind common.FieldKind, raw string, name common.ResolvedName) error
	Close() error
}

// generateKey 生成緩存鍵
func generateKey(kind common.FieldKind, raw string) string {
	return fmt.Sprintf("%s:%s", kind, hashString(raw))
}

// hashString 計算字符串的 SHA-256 哈希值
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
