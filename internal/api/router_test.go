package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"drug-crossref/internal/api/handlers/crossref"
	"drug-crossref/internal/core/matcher"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/core/resolver"
	"drug-crossref/internal/core/schema"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/infrastructure/tabular"
	"drug-crossref/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approvalsCSV = "承認日,販売名,成分名\n" +
	"2024/3/26,スリンダ錠28（あすか製薬㈱、9010401018375）,ドロスピレノン\n" +
	"2024/6/24,ナゾ錠（謎製薬㈱）,ナゾノセイブン\n"

const registryCSV = "許可證字號,中文品名,劑型,製造商名稱,主成分略述\n" +
	"衛署藥輸字第024733號,悅姿,膜衣錠,Bayer AG,DROSPIRENONE\n"

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Debug: false, Version: "test"},
		Server:  config.ServerConfig{WriteTimeout: time.Minute},
		Upload:  config.UploadConfig{MaxSizeBytes: 1 << 20},
		Matcher: config.MatcherConfig{Threshold: matcher.DefaultThreshold},
	}
}

func testRouter(t *testing.T, withRegistry bool) (*gin.Engine, *pipeline.Pipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var m *matcher.Matcher
	if withRegistry {
		entries, err := tabular.ParseRegistryRows([][]string{
			{"主成分略述", "中文品名", "許可證字號"},
			{"Drospirenone", "悅姿", "衛署藥輸字第024733號"},
		})
		require.NoError(t, err)
		m = matcher.New(matcher.NewRegistry(entries), matcher.DefaultThreshold, nil)
	}
	p := pipeline.New(schema.New(0), resolver.New(resolver.DefaultDictionary(), nil), m, nil)

	router, err := SetupRouter(testConfig(), p, nil)
	require.NoError(t, err)
	return router, p
}

func multipartBody(t *testing.T, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, f := range files {
		part, err := w.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLiveAndHealth(t *testing.T) {
	router, _ := testRouter(t, true)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyRequiresRegistry(t *testing.T) {
	router, _ := testRouter(t, false)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"tw.csv", registryCSV}})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/registry", body)
	req.Header.Set("Content-Type", contentType)
	rec = do(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reg crossref.RegistryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, 1, reg.Entries)

	rec = do(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registry_entries":1`)
	assert.Contains(t, rec.Body.String(), `"strategy":"sequential"`)
}

func TestReconcileJSON(t *testing.T) {
	router, _ := testRouter(t, true)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"2024.csv", approvalsCSV}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "スリンダ錠28", result.Rows[0].TradeName)
	assert.Equal(t, "衛署藥輸字第024733號", result.Rows[0].TWLicenseNumber)
	assert.Equal(t, "台灣未上市", result.Rows[1].TWStatus)
	assert.Equal(t, 1, result.Summary.Matched)
	assert.Equal(t, []string{"2024"}, result.Summary.ProcessedSheets)
}

func TestReconcileCSVWithUploadedRegistry(t *testing.T) {
	router, _ := testRouter(t, false)

	body, contentType := multipartBody(t, map[string][2]string{
		"file":     {"2024.csv", approvalsCSV},
		"registry": {"tw.csv", registryCSV},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile?format=csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	out := rec.Body.Bytes()
	assert.Equal(t, tabular.BOM, out[:3])
	assert.Contains(t, string(out), "悅姿")
}

func TestReconcileWithoutRegistry(t *testing.T) {
	router, _ := testRouter(t, false)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"2024.csv", approvalsCSV}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrCodeRegistryUnavailable)
}

func TestReconcileSchemaMismatch(t *testing.T) {
	router, _ := testRouter(t, true)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"notes.csv", "備考\n注意事項\n"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp crossref.SchemaMismatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.ErrCodeSchemaMismatch, resp.Code)
	require.Len(t, resp.Summary.SkippedSheets, 1)
	assert.Equal(t, "notes", resp.Summary.SkippedSheets[0].Name)
}

func TestReconcileRejectsBadInput(t *testing.T) {
	router, _ := testRouter(t, true)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"approvals.pdf", "%PDF"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body, contentType = multipartBody(t, map[string][2]string{"file": {"2024.csv", approvalsCSV}})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/reconcile?threshold=120", body)
	req.Header.Set("Content-Type", contentType)
	rec = do(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil)
	rec = do(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEndpoint(t *testing.T) {
	router, _ := testRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBufferString(`{"text":"ドロスピレノン","kind":"ingredient"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var name common.ResolvedName
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &name))
	assert.Equal(t, "Drospirenone", name.ResolvedText)
	assert.Equal(t, common.SourceDictionary, name.Source)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBufferString(`{"text":"x","kind":"company"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(router, req).Code)
}

func TestMatchEndpoint(t *testing.T) {
	router, _ := testRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewBufferString(`{"ingredient":" DROSPIRENONE "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result common.MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Matched)
	assert.Equal(t, common.MatchExact, result.Method)
	require.Len(t, result.RegistryEntries, 1)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewBufferString(`{"ingredient":"Sotorasib","threshold":100}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Matched)
	assert.NotNil(t, result.SimilarityScore)
}

func TestSetupRouterRequiresPipeline(t *testing.T) {
	_, err := SetupRouter(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestUnknownRouteAndStrictBodies(t *testing.T) {
	router, _ := testRouter(t, true)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrCodeNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewBufferString(`{"ingredient":"x","limit":3}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrCodeInvalidRequest)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBufferString(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(router, req).Code)
}

func TestResolveWithoutResolver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := SetupRouter(testConfig(), pipeline.New(nil, nil, nil, nil), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBufferString(`{"text":"ドロスピレノン"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(router, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrCodeServiceUnavailable)
}

func TestReconcileHeaderOnlySheetReturnsEmptyRows(t *testing.T) {
	router, _ := testRouter(t, true)

	body, contentType := multipartBody(t, map[string][2]string{"file": {"2025.csv", "承認日,販売名,成分名\n"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rows":[]`)
	assert.Contains(t, rec.Body.String(), `"unresolved":[]`)
}
