package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"drug-crossref/internal/core/cache"
	"drug-crossref/internal/pkg/common"

	"go.uber.org/zap"
)

// Resolver 依序嘗試字典、遠端來源，全部失敗則原文透傳
type Resolver struct {
	dict    *Dictionary
	sources []Source
	store   cache.Store

	mu        sync.Mutex
	disabled  map[string]error
	runMisses map[string]struct{}
}

// New 建立 Resolver；store 可為 nil
func New(dict *Dictionary, store cache.Store, sources ...Source) *Resolver {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	return &Resolver{
		dict:      dict,
		sources:   sources,
		store:     store,
		disabled:  make(map[string]error),
		runMisses: make(map[string]struct{}),
	}
}

// Reset 開始新的一批：重新啟用被停用的來源並清除本批未解析紀錄
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled = make(map[string]error)
	r.runMisses = make(map[string]struct{})
}

// DisabledSources 本批因授權失敗而停用的來源
func (r *Resolver) DisabledSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.disabled))
	for name := range r.disabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceNames 已設定的遠端來源
func (r *Resolver) SourceNames() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// DictionarySize 字典項目數
func (r *Resolver) DictionarySize() int {
	return r.dict.Len()
}

// Resolve 解析名稱，不會回傳錯誤：失敗時 Source 為 unresolved 且 ResolvedText 等於原文
func (r *Resolver) Resolve(ctx context.Context, raw string, kind common.FieldKind) common.ResolvedName {
	text := strings.TrimSpace(raw)
	if text == "" {
		return common.Unresolved(raw)
	}

	if e, ok := r.dict.Lookup(text); ok {
		return common.ResolvedName{
			RawText:      raw,
			ResolvedText: e.English,
			ChineseText:  e.Chinese,
			Source:       common.SourceDictionary,
		}
	}

	missKey := string(kind) + "\x00" + text
	if r.seenMiss(missKey) {
		return common.Unresolved(raw)
	}

	if r.store != nil {
		cached, err := r.store.Get(ctx, kind, text)
		if err == nil {
			cached.RawText = raw
			return cached
		}
		if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取名稱快取失敗", zap.Error(err))
		}
	}

	for _, src := range r.sources {
		if !src.Supports(kind) || r.isDisabled(src.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return common.Unresolved(raw)
		}

		start := time.Now()
		name, err := src.Lookup(ctx, text, kind)
		common.LogLookup(src.Name(), text, time.Since(start), err)
		if err == nil {
			name.RawText = raw
			r.remember(ctx, kind, text, name)
			return name
		}

		if IsAuthorizationError(err) {
			r.disable(src.Name(), err)
		}
	}

	if ctx.Err() == nil {
		r.markMiss(missKey)
	}
	return common.Unresolved(raw)
}

func (r *Resolver) remember(ctx context.Context, kind common.FieldKind, text string, name common.ResolvedName) {
	if r.store == nil {
		return
	}
	if err := r.store.Set(ctx, kind, text, name); err != nil {
		common.LogWarn("寫入名稱快取失敗", zap.Error(err))
	}
}

func (r *Resolver) isDisabled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.disabled[name]
	return ok
}

func (r *Resolver) disable(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disabled[name]; ok {
		return
	}
	r.disabled[name] = err
	common.LogError("來源授權失敗，本批停用",
		zap.String("source", name),
		zap.Error(err),
	)
}

func (r *Resolver) seenMiss(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runMisses[key]
	return ok
}

func (r *Resolver) markMiss(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runMisses[key] = struct{}{}
}
