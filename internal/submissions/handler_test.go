package submissions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"mathsnap-backend/internal/bootstrap"
	"mathsnap-backend/internal/llm"
	"mathsnap-backend/internal/shared/config"
	memoryledger "mathsnap-backend/internal/shared/storage/ledger/memory"
)

type stubExtractor struct {
	latex string
	err   error
}

func (s stubExtractor) ExtractLaTeX(ctx context.Context, input llm.ExtractInput) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.latex, nil
}

func buildTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		LedgerType:      "memory",
		ExtractModels:   []string{"gpt-4o-mini"},
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func pngUploadBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 30))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", "equation.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(img.Bytes()); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeSession(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSessionWorkflowEndToEnd(t *testing.T) {
	app := buildTestApp(t)
	app.Service.LLM = stubExtractor{latex: `\int_0^1 x^2\,dx`}
	router := app.Router

	// Create a session.
	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{
		"studentId":   "20250101",
		"studentName": "Kim Soyeon",
		"category":    "calculus",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	created := decodeSession(t, resp)
	sessionID, _ := created["sessionId"].(string)
	if sessionID == "" {
		t.Fatalf("expected sessionId, got empty")
	}

	// Extraction before any image is rejected.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/extract", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("extract without image: expected 400, got %d", resp.Code)
	}

	// Upload the image.
	body, contentType := pngUploadBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	uploaded := decodeSession(t, rec)
	if uploaded["hasImage"] != true {
		t.Fatalf("expected hasImage true after upload")
	}

	// Extract.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/extract", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("extract: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	extracted := decodeSession(t, resp)
	if extracted["latexCode"] != `\int_0^1 x^2\,dx` {
		t.Fatalf("latexCode = %v", extracted["latexCode"])
	}

	// Edit the result by hand.
	edited := `\int_0^1 x^2\,dx = \frac{1}{3}`
	resp = doJSON(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID+"/code", map[string]string{
		"latexCode": edited,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("update code: expected 200, got %d", resp.Code)
	}

	// Submit.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/submit", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	submitted := decodeSession(t, resp)
	if submitted["status"] != "submitted" {
		t.Fatalf("status = %v", submitted["status"])
	}
	link, _ := submitted["imageLink"].(string)
	if !strings.HasPrefix(link, "file://") {
		t.Fatalf("imageLink = %q", link)
	}

	mem, ok := app.Ledger.(*memoryledger.Ledger)
	if !ok {
		t.Fatalf("expected memory ledger, got %T", app.Ledger)
	}
	rows := mem.Rows()
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d", len(rows))
	}
	if rows[0].StudentID != "20250101" || rows[0].LatexCode != edited {
		t.Fatalf("ledger row = %+v", rows[0])
	}

	// Edits after submission are rejected.
	resp = doJSON(t, router, http.MethodPut, "/api/v1/sessions/"+sessionID+"/code", map[string]string{
		"latexCode": "too late",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("post-submit edit: expected 409, got %d", resp.Code)
	}

	// Export still serves the submitted code byte for byte.
	reqExport := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID+"/export", nil)
	recExport := httptest.NewRecorder()
	router.ServeHTTP(recExport, reqExport)
	if recExport.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", recExport.Code)
	}
	if recExport.Body.String() != edited {
		t.Fatalf("export body = %q", recExport.Body.String())
	}
	if disposition := recExport.Header().Get("Content-Disposition"); !strings.Contains(disposition, ".tex") {
		t.Fatalf("Content-Disposition = %q", disposition)
	}

	// Restart opens a fresh record for the same student.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/restart", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("restart: expected 200, got %d", resp.Code)
	}
	restarted := decodeSession(t, resp)
	if restarted["status"] != "unsubmitted" {
		t.Fatalf("status after restart = %v", restarted["status"])
	}
	if restarted["hasImage"] != false {
		t.Fatalf("expected hasImage false after restart")
	}
}

func TestExtractWithMissingCredential(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{
		"studentId":   "20250102",
		"studentName": "Lee Minho",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.Code)
	}
	created := decodeSession(t, resp)
	sessionID := created["sessionId"].(string)

	body, contentType := pngUploadBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", rec.Code)
	}

	// No OPENAI_API_KEY configured, so extraction fails before any network call.
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/extract", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("extract: expected 401, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_credentials" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}

	// The failed extraction never lands in the editable code.
	getResp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	current := decodeSession(t, getResp)
	if current["latexCode"] != "" {
		t.Fatalf("latexCode = %v, expected empty after failed extraction", current["latexCode"])
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/nope", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get: expected 404, got %d", resp.Code)
	}
	resp = doJSON(t, router, http.MethodPost, "/api/v1/sessions/nope/submit", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("submit: expected 404, got %d", resp.Code)
	}
}
