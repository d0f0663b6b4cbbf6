package resolver

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrLookupMiss 來源沒有找到結果，會改試下一個來源
var ErrLookupMiss = errors.New("lookup miss")

// TransientError 網路錯誤、5xx 或 429，可重試
type TransientError struct {
	Source     string
	StatusCode int // 0 表示傳輸層錯誤
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient failure: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// AuthorizationError 憑證或權限問題，該來源在本次執行中停用
type AuthorizationError struct {
	Source     string
	StatusCode int
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: authorization failed: status %d", e.Source, e.StatusCode)
}

// IsAuthorizationError 檢查是否為授權錯誤
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// classifyStatus 將 HTTP 狀態碼轉為錯誤分類，2xx 回傳 nil
func classifyStatus(source string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusProxyAuthRequired:
		return &AuthorizationError{Source: source, StatusCode: status}
	case status == http.StatusTooManyRequests, status >= 500:
		return &TransientError{Source: source, StatusCode: status}
	default:
		return fmt.Errorf("%s: %w: status %d", source, ErrLookupMiss, status)
	}
}
