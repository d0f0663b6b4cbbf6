package resolver

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// PubChemSource 以 PubChem PUG-REST 同義詞查詢成分英文名
type PubChemSource struct {
	client  *resty.Client
	limiter *rate.Limiter
	retry   RetryPolicy
}

type synonymsResponse struct {
	InformationList struct {
		Information []struct {
			CID     int      `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

// NewPubChemSource 創建 PubChem 來源
func NewPubChemSource(cfg config.PubChemConfig, retry RetryPolicy) *PubChemSource {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &PubChemSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:   retry,
	}
}

func (s *PubChemSource) Name() string { return "pubchem" }

// Supports 只查詢成分名，品名不是化合物
func (s *PubChemSource) Supports(kind common.FieldKind) bool {
	return kind == common.KindIngredient
}

// Lookup 查詢同義詞並挑出第一個像英文專有名詞的名稱
func (s *PubChemSource) Lookup(ctx context.Context, raw string, _ common.FieldKind) (common.ResolvedName, error) {
	var synonyms []string
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		// 每次嘗試都要經過限流
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := s.client.R().
			SetContext(ctx).
			SetPathParam("name", raw).
			Get("/compound/name/{name}/synonyms/JSON")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransientError{Source: s.Name(), Err: err}
		}
		if err := classifyStatus(s.Name(), resp.StatusCode()); err != nil {
			return err
		}

		var body synonymsResponse
		if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
			return fmt.Errorf("%s: %w: decode response: %v", s.Name(), ErrLookupMiss, err)
		}
		if len(body.InformationList.Information) > 0 {
			synonyms = body.InformationList.Information[0].Synonym
		}
		return nil
	})
	if err != nil {
		return common.ResolvedName{}, err
	}

	for _, syn := range synonyms {
		if isProperName(syn) {
			return common.ResolvedName{RawText: raw, ResolvedText: syn, Source: common.SourceStructuredLookup}, nil
		}
	}
	return common.ResolvedName{}, fmt.Errorf("%s: %w: no usable synonym for %q", s.Name(), ErrLookupMiss, raw)
}

// isProperName 首字大寫且其餘皆為字母
func isProperName(s string) bool {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError || !unicode.IsUpper(first) {
		return false
	}
	for _, r := range s[size:] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
