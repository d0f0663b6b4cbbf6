package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"drug-crossref/internal/core/assemble"
	"drug-crossref/internal/core/extract"
	"drug-crossref/internal/core/matcher"
	"drug-crossref/internal/core/resolver"
	"drug-crossref/internal/core/schema"
	"drug-crossref/internal/pkg/common"

	"go.uber.org/zap"
)

// Pipeline 標題對應 → 擷取 → 名稱解析 → 比對 → 組裝
type Pipeline struct {
	normalizer *schema.Normalizer
	resolver   *resolver.Resolver
	strategy   Strategy

	runMu sync.Mutex // 同一時間只處理一批資料

	regMu   sync.RWMutex
	matcher *matcher.Matcher
}

// New 建立 Pipeline；strategy 為 nil 時逐列處理
func New(normalizer *schema.Normalizer, res *resolver.Resolver, m *matcher.Matcher, strategy Strategy) *Pipeline {
	if normalizer == nil {
		normalizer = schema.New(0)
	}
	if strategy == nil {
		strategy = Sequential{}
	}
	return &Pipeline{
		normalizer: normalizer,
		resolver:   res,
		matcher:    m,
		strategy:   strategy,
	}
}

// Matcher 目前使用的比對器
func (p *Pipeline) Matcher() *matcher.Matcher {
	p.regMu.RLock()
	defer p.regMu.RUnlock()
	return p.matcher
}

// SetMatcher 替換台灣許可證資料
func (p *Pipeline) SetMatcher(m *matcher.Matcher) {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	p.matcher = m
}

// Resolver 名稱解析器
func (p *Pipeline) Resolver() *resolver.Resolver {
	return p.resolver
}

// Strategy 目前的處理策略
func (p *Pipeline) Strategy() Strategy {
	return p.strategy
}

// Run 以目前的許可證資料處理所有工作表
func (p *Pipeline) Run(ctx context.Context, sheets []common.Sheet) (*Result, error) {
	m := p.Matcher()
	if m == nil {
		return nil, common.ErrRegistryUnavailable
	}
	return p.RunWithMatcher(ctx, sheets, m)
}

// RunWithMatcher 以指定的比對器處理所有工作表。單列或單一工作表的失敗不會中止整批。
func (p *Pipeline) RunWithMatcher(ctx context.Context, sheets []common.Sheet, m *matcher.Matcher) (*Result, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	summary := Summary{
		RunID:           common.GenerateUUID(),
		Strategy:        p.strategy.Name(),
		ProcessedSheets: []string{},
		SkippedSheets:   []SkippedSheet{},
		Unresolved:      []UnresolvedName{},
		DisabledSources: []string{},
		StartedAt:       start,
	}
	if p.resolver != nil {
		p.resolver.Reset()
	}

	var records []common.DrugRecord
	for _, sheet := range sheets {
		mapping, err := p.normalizer.Detect(sheet)
		if err != nil {
			var mismatch *schema.SchemaMismatchError
			if !errors.As(err, &mismatch) {
				return nil, err
			}
			summary.SkippedSheets = append(summary.SkippedSheets, SkippedSheet{
				Name:    sheet.Name,
				Reason:  mismatch.Error(),
				Missing: mismatch.Missing,
			})
			common.LogWarn("略過工作表",
				zap.String("sheet", sheet.Name),
				zap.String("missing", common.FieldsToString(mismatch.Missing)),
			)
			continue
		}

		summary.ProcessedSheets = append(summary.ProcessedSheets, sheet.Name)
		for rec, status := range extract.Classified(sheet, mapping) {
			summary.RowsRead++
			switch status {
			case extract.StatusBlank:
				summary.BlankRows++
			case extract.StatusMalformed:
				summary.MalformedRows++
			default:
				records = append(records, rec)
			}
		}
	}
	summary.Records = len(records)

	items := p.strategy.Enrich(ctx, records, func(ctx context.Context, rec common.DrugRecord) assemble.Item {
		return p.enrich(ctx, rec, m)
	})
	if err := ctx.Err(); err != nil {
		common.LogWarn("比對批次已取消", zap.String("run_id", summary.RunID), zap.Error(err))
		return nil, err
	}

	for _, item := range items {
		if item.Match.Matched {
			summary.Matched++
		} else {
			summary.Unmatched++
		}
		switch item.Match.Method {
		case common.MatchExact:
			summary.ExactMatches++
		case common.MatchFuzzy:
			summary.FuzzyMatches++
		}
		for _, name := range []struct {
			kind common.FieldKind
			n    common.ResolvedName
		}{
			{common.KindIngredient, item.Ingredient},
			{common.KindTradeName, item.TradeName},
		} {
			if name.n.Source == common.SourceUnresolved {
				summary.Unresolved = append(summary.Unresolved, UnresolvedName{
					Sheet: item.Record.Sheet,
					Row:   item.Record.Row,
					Kind:  name.kind,
					Raw:   name.n.RawText,
				})
			}
		}
	}
	if p.resolver != nil {
		summary.DisabledSources = p.resolver.DisabledSources()
	}
	summary.Duration = time.Since(start)

	result := &Result{Rows: assemble.Assemble(items), Summary: summary}

	common.LogInfo("比對批次完成",
		zap.String("run_id", summary.RunID),
		zap.Int("sheets", len(summary.ProcessedSheets)),
		zap.Int("skipped_sheets", len(summary.SkippedSheets)),
		zap.Int("records", summary.Records),
		zap.Int("matched", summary.Matched),
		zap.Int("unresolved", len(summary.Unresolved)),
		zap.Strings("disabled_sources", summary.DisabledSources),
		zap.Duration("耗時", summary.Duration),
	)
	return result, nil
}

// enrich 解析成分與品名後，以英文成分名（解析失敗則原文）比對
func (p *Pipeline) enrich(ctx context.Context, rec common.DrugRecord, m *matcher.Matcher) assemble.Item {
	item := assemble.Item{Record: rec}
	if p.resolver != nil {
		item.Ingredient = p.resolver.Resolve(ctx, rec.Ingredient, common.KindIngredient)
		item.TradeName = p.resolver.Resolve(ctx, rec.TradeName, common.KindTradeName)
	} else {
		item.Ingredient = common.Unresolved(rec.Ingredient)
		item.TradeName = common.Unresolved(rec.TradeName)
	}
	item.Match = m.Match(item.Ingredient.ResolvedText)
	return item
}
