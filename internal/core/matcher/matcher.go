package matcher

import (
	"sort"

	"drug-crossref/internal/pkg/common"
)

// DefaultThreshold 模糊比對的預設門檻
const DefaultThreshold = 80.0

// Registry 依正規化成分名分組的台灣許可證資料，建立後唯讀
type Registry struct {
	entries []common.RegistryEntry
	byKey   map[string][]common.RegistryEntry
	keys    []string // 排序後的不重複成分名
}

// NewRegistry 建立索引，保留原始順序
func NewRegistry(entries []common.RegistryEntry) *Registry {
	r := &Registry{
		entries: entries,
		byKey:   make(map[string][]common.RegistryEntry),
	}
	for _, e := range entries {
		key := Normalize(e.Ingredient)
		if key == "" {
			continue
		}
		if _, ok := r.byKey[key]; !ok {
			r.keys = append(r.keys, key)
		}
		r.byKey[key] = append(r.byKey[key], e)
	}
	sort.Strings(r.keys)
	return r
}

// Len 許可證筆數
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Ingredients 不重複成分名數
func (r *Registry) Ingredients() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Matcher 先精確比對，找不到才做模糊比對
type Matcher struct {
	registry  *Registry
	threshold float64
	scorer    Scorer
}

// New 建立 Matcher；scorer 為 nil 時使用 LevenshteinRatio
func New(registry *Registry, threshold float64, scorer Scorer) *Matcher {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	if scorer == nil {
		scorer = LevenshteinRatio
	}
	return &Matcher{registry: registry, threshold: threshold, scorer: scorer}
}

// Registry 目前使用的許可證資料
func (m *Matcher) Registry() *Registry {
	return m.registry
}

// Threshold 預設門檻
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match 以預設門檻比對
func (m *Matcher) Match(query string) common.MatchResult {
	return m.MatchWithThreshold(query, m.threshold)
}

// MatchWithThreshold 比對單一成分名
func (m *Matcher) MatchWithThreshold(query string, threshold float64) common.MatchResult {
	result := common.MatchResult{
		QueryIngredient: query,
		Method:          common.MatchNone,
	}

	key := Normalize(query)
	if key == "" {
		return result
	}

	if entries, ok := m.registry.byKey[key]; ok {
		result.Matched = true
		result.Method = common.MatchExact
		result.MatchedIngredient = entries[0].Ingredient
		result.RegistryEntries = append([]common.RegistryEntry(nil), entries...)
		return result
	}

	if len(m.registry.keys) == 0 {
		return result
	}

	// keys 已排序，同分時保留先出現（字典序最小）的成分名
	bestKey := ""
	bestScore := -1.0
	for _, candidate := range m.registry.keys {
		score := m.scorer(key, candidate)
		if score > bestScore {
			bestKey, bestScore = candidate, score
		}
	}

	result.SimilarityScore = &bestScore
	if bestScore < threshold {
		return result
	}

	entries := m.registry.byKey[bestKey]
	result.Matched = true
	result.Method = common.MatchFuzzy
	result.MatchedIngredient = entries[0].Ingredient
	result.RegistryEntries = append([]common.RegistryEntry(nil), entries...)
	return result
}
