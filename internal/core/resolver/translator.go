package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// TranslatorSource 呼叫 Azure Translator 相容的翻譯服務
type TranslatorSource struct {
	client  *resty.Client
	from    string
	targets []string
	retry   RetryPolicy
}

type translateRequest struct {
	Text string `json:"Text"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// NewTranslatorSource 創建翻譯來源
func NewTranslatorSource(cfg config.TranslatorConfig, retry RetryPolicy) *TranslatorSource {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Ocp-Apim-Subscription-Key", cfg.APIKey)
	if cfg.Region != "" {
		client.SetHeader("Ocp-Apim-Subscription-Region", cfg.Region)
	}

	from := cfg.SourceLang
	if from == "" {
		from = "ja"
	}
	return &TranslatorSource{
		client:  client,
		from:    from,
		targets: cfg.TargetLangs,
		retry:   retry,
	}
}

func (s *TranslatorSource) Name() string { return "translator" }

func (s *TranslatorSource) Supports(common.FieldKind) bool { return true }

// Lookup 第一個目標語言的翻譯直接採用，第二個作為中文名
func (s *TranslatorSource) Lookup(ctx context.Context, raw string, _ common.FieldKind) (common.ResolvedName, error) {
	params := url.Values{}
	params.Set("api-version", "3.0")
	params.Set("from", s.from)
	for _, to := range s.targets {
		params.Add("to", to)
	}

	var body []translateResponse
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			SetBody([]translateRequest{{Text: raw}}).
			Post("/translate")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransientError{Source: s.Name(), Err: err}
		}
		if err := classifyStatus(s.Name(), resp.StatusCode()); err != nil {
			return err
		}
		if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
			return fmt.Errorf("%s: %w: decode response: %v", s.Name(), ErrLookupMiss, err)
		}
		return nil
	})
	if err != nil {
		return common.ResolvedName{}, err
	}

	if len(body) == 0 || len(body[0].Translations) == 0 {
		return common.ResolvedName{}, fmt.Errorf("%s: %w: empty translation", s.Name(), ErrLookupMiss)
	}
	translations := body[0].Translations
	text := strings.TrimSpace(translations[0].Text)
	if text == "" {
		return common.ResolvedName{}, fmt.Errorf("%s: %w: empty translation", s.Name(), ErrLookupMiss)
	}

	name := common.ResolvedName{RawText: raw, ResolvedText: text, Source: common.SourceTranslationService}
	if len(translations) > 1 {
		name.ChineseText = strings.TrimSpace(translations[1].Text)
	}
	return name, nil
}
