package crossref

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drug-crossref/internal/core/matcher"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/infrastructure/tabular"
	"drug-crossref/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 比對相關 API
type Handler struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
}

// NewHandler 創建處理器
func NewHandler(cfg *config.Config, p *pipeline.Pipeline) *Handler {
	return &Handler{cfg: cfg, pipeline: p}
}

// ResolveRequest 單一名稱解析請求
type ResolveRequest struct {
	Text string           `json:"text"`
	Kind common.FieldKind `json:"kind"`
}

// MatchRequest 單一成分比對請求
type MatchRequest struct {
	Ingredient string   `json:"ingredient"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// RegistryResponse 許可證資料載入結果
type RegistryResponse struct {
	Entries     int    `json:"entries"`
	Ingredients int    `json:"ingredients"`
	Source      string `json:"source"`
}

// SchemaMismatchResponse 所有工作表都缺少必要欄位
type SchemaMismatchResponse struct {
	common.ErrorResponse
	Summary pipeline.Summary `json:"summary"`
}

func (h *Handler) fail(c *gin.Context, err error) {
	ce := common.AsCustomError(err)
	if ce.Status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗", zap.String("code", ce.Code), zap.Error(err))
	}
	c.Error(err)
	c.AbortWithStatusJSON(ce.Status, ce.Response(h.cfg.App.Debug))
}

func (h *Handler) invalid(c *gin.Context, format string, args ...any) {
	h.fail(c, common.NewValidationError(fmt.Sprintf(format, args...)))
}

// threshold 讀取 query 的 threshold，未提供時回傳 ok=false
func threshold(c *gin.Context) (float64, bool, error) {
	raw := c.Query("threshold")
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false, fmt.Errorf("threshold must be a number between 0 and 100")
	}
	return v, true, nil
}

func openUpload(fh *multipart.FileHeader) (multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, common.ErrInvalidRequest.Wrap(err)
	}
	return f, nil
}

func loadUploadedRegistry(fh *multipart.FileHeader, sheet string) (*matcher.Registry, error) {
	f, err := openUpload(fh)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := tabular.LoadRegistry(f, fh.Filename, sheet)
	if err != nil {
		return nil, err
	}
	return matcher.NewRegistry(entries), nil
}

// Reconcile 上傳日本核准清單，回傳比對結果
//
// 表單欄位 file 為必要，registry 可覆寫本次使用的許可證資料。
// format=json|csv|xlsx 決定輸出格式。
func (h *Handler) Reconcile(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	switch format {
	case "json", "csv", "xlsx":
	default:
		h.invalid(c, "unsupported output format %q", format)
		return
	}

	limit, hasLimit, err := threshold(c)
	if err != nil {
		h.invalid(c, "%v", err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		h.invalid(c, "form field \"file\" is required")
		return
	}

	m := h.pipeline.Matcher()
	if regFile, err := c.FormFile("registry"); err == nil {
		reg, err := loadUploadedRegistry(regFile, c.PostForm("registry_sheet"))
		if err != nil {
			h.fail(c, err)
			return
		}
		m = matcher.New(reg, h.cfg.Matcher.Threshold, nil)
	}
	if m == nil {
		h.fail(c, common.ErrRegistryUnavailable)
		return
	}
	if hasLimit {
		m = matcher.New(m.Registry(), limit, nil)
	}

	f, err := openUpload(fh)
	if err != nil {
		h.fail(c, err)
		return
	}
	sheets, err := tabular.ReadSheets(f, fh.Filename)
	f.Close()
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.pipeline.RunWithMatcher(c.Request.Context(), sheets, m)
	if err != nil {
		if errors.Is(err, c.Request.Context().Err()) {
			h.fail(c, common.ErrGatewayTimeout.Wrap(err))
			return
		}
		h.fail(c, err)
		return
	}
	c.Set("run_id", result.Summary.RunID)
	c.Header("X-Run-ID", result.Summary.RunID)

	if err := result.Err(); err != nil {
		ce := common.AsCustomError(err)
		c.JSON(ce.Status, SchemaMismatchResponse{
			ErrorResponse: ce.Response(h.cfg.App.Debug),
			Summary:       result.Summary,
		})
		return
	}

	filename := fmt.Sprintf("crossref-%s", time.Now().Format("20060102-150405"))
	switch format {
	case "csv":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := tabular.WriteCSV(c.Writer, result.Rows); err != nil {
			common.LogError("寫出 CSV 失敗", zap.Error(err))
		}
	case "xlsx":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".xlsx"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Status(http.StatusOK)
		if err := tabular.WriteXLSX(c.Writer, result.Rows); err != nil {
			common.LogError("寫出活頁簿失敗", zap.Error(err))
		}
	default:
		c.JSON(http.StatusOK, result)
	}
}

// Resolve 解析單一日文名稱
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := common.DecodeJSONStrict(c.Request.Body, &req); err != nil {
		h.invalid(c, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.invalid(c, "text is required")
		return
	}
	if req.Kind == "" {
		req.Kind = common.KindIngredient
	}
	if !req.Kind.Valid() {
		h.invalid(c, "unknown kind %q", req.Kind)
		return
	}

	res := h.pipeline.Resolver()
	if res == nil {
		h.fail(c, common.ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, res.Resolve(c.Request.Context(), req.Text, req.Kind))
}

// Match 以英文成分名比對目前的許可證資料
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if err := common.DecodeJSONStrict(c.Request.Body, &req); err != nil {
		h.invalid(c, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Ingredient) == "" {
		h.invalid(c, "ingredient is required")
		return
	}

	m := h.pipeline.Matcher()
	if m == nil {
		h.fail(c, common.ErrRegistryUnavailable)
		return
	}

	limit := m.Threshold()
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 100 {
			h.invalid(c, "threshold must be between 0 and 100")
			return
		}
		limit = *req.Threshold
	}
	c.JSON(http.StatusOK, m.MatchWithThreshold(req.Ingredient, limit))
}

// ReplaceRegistry 上傳新的許可證資料，取代目前使用中的版本
func (h *Handler) ReplaceRegistry(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.invalid(c, "form field \"file\" is required")
		return
	}
	reg, err := loadUploadedRegistry(fh, c.PostForm("sheet"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.pipeline.SetMatcher(matcher.New(reg, h.cfg.Matcher.Threshold, nil))
	common.LogInfo("台灣許可證資料已更新",
		zap.String("file", fh.Filename),
		zap.Int("entries", reg.Len()),
	)
	c.JSON(http.StatusOK, RegistryResponse{
		Entries:     reg.Len(),
		Ingredients: reg.Ingredients(),
		Source:      fh.Filename,
	})
}
