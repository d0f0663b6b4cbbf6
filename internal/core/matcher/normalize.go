package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize NFKC、去頭尾空白、合併內部空白並做大小寫折疊
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	// Caser 有狀態，不能跨 goroutine 共用
	return cases.Fold().String(s)
}

// Scorer 回傳 0 到 100 的相似度
type Scorer func(a, b string) float64

// LevenshteinRatio 以編輯距離計算相似度：100 * (1 - d / 較長字串的字元數)
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}
