package pipeline

import (
	"context"
	"fmt"

	"drug-crossref/internal/core/cache"
	"drug-crossref/internal/core/matcher"
	"drug-crossref/internal/core/resolver"
	"drug-crossref/internal/core/schema"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/infrastructure/tabular"
	"drug-crossref/internal/pkg/common"

	"go.uber.org/zap"
)

// Components 由設定組出的元件，Close 釋放快取連線
type Components struct {
	Pipeline *Pipeline
	Store    cache.Store
}

// Close 關閉快取
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// NewFromConfig 建立字典、快取、遠端來源與處理策略；許可證資料另由 LoadMatcher 載入
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Components, error) {
	dict, err := resolver.LoadDictionary(cfg.Resolver.DictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	store := cache.New(ctx, cfg.Cache)
	retry := resolver.NewRetryPolicy(cfg.Resolver.Retry)

	var sources []resolver.Source
	if cfg.Resolver.PubChem.Enabled {
		sources = append(sources, resolver.NewPubChemSource(cfg.Resolver.PubChem, retry))
	}
	if cfg.Resolver.Translator.Enabled {
		sources = append(sources, resolver.NewTranslatorSource(cfg.Resolver.Translator, retry))
	}

	res := resolver.New(dict, store, sources...)
	strategy := NewStrategy(cfg.Pipeline)

	common.LogInfo("名稱解析器已初始化",
		zap.Int("dictionary_terms", dict.Len()),
		zap.Strings("sources", res.SourceNames()),
		zap.Bool("cache", store != nil),
		zap.String("strategy", strategy.Name()),
	)

	p := New(schema.New(cfg.Schema.HeaderScanRows), res, nil, strategy)
	return &Components{Pipeline: p, Store: store}, nil
}

// LoadMatcher 依 registry 設定讀取台灣許可證資料
func LoadMatcher(cfg *config.Config) (*matcher.Matcher, error) {
	if cfg.Registry.Path == "" {
		return nil, common.ErrRegistryUnavailable.Wrap(fmt.Errorf("registry path is not configured"))
	}
	entries, err := tabular.LoadRegistryFile(cfg.Registry.Path, cfg.Registry.Sheet, cfg.Registry.SQLiteTable)
	if err != nil {
		return nil, err
	}
	reg := matcher.NewRegistry(entries)
	common.LogInfo("台灣許可證資料已載入",
		zap.String("path", cfg.Registry.Path),
		zap.Int("entries", reg.Len()),
		zap.Int("ingredients", reg.Ingredients()),
	)
	return matcher.New(reg, cfg.Matcher.Threshold, nil), nil
}
