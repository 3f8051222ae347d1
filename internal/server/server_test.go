package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
)

const postsCSV = `platform,views,likes,posted_at
twitter,100,10,2024-01-01
twitter,200,20,2024-01-02
instagram,300,30,2024-01-03
instagram,400,40,2024-01-04
tiktok,500,50,2024-01-05
tiktok,,60,2024-01-06
twitter,700,70,2024-01-07
twitter,700,70,2024-01-07
`

func upload(t *testing.T, h http.Handler, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(fw, content)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func call(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestUploadPreprocessEDATrainPredict(t *testing.T) {
	h := New(Options{}).Handler()

	rec := upload(t, h, "posts.csv", postsCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body)
	}
	out := decode(t, rec)
	if out["message"] != "File uploaded successfully." {
		t.Fatalf("upload = %v", out)
	}
	ds := out["dataset"].(map[string]any)
	id := ds["id"].(string)
	if ds["is_cleaned"] != false || ds["cleaned_file"] != nil || ds["file"] != "posts.csv" {
		t.Fatalf("dataset = %v", ds)
	}

	rec, out = call(t, h, http.MethodPost, "/api/preprocess/"+id+"/", "")
	if rec.Code != http.StatusOK || out["message"] != "Dataset cleaned successfully." {
		t.Fatalf("preprocess %d: %v", rec.Code, out)
	}
	summary := out["summary"].(map[string]any)
	if summary["rows_before"] != 8.0 || summary["rows_after"] != 7.0 || summary["rows_removed"] != 1.0 {
		t.Fatalf("summary = %v", summary)
	}

	rec, out = call(t, h, http.MethodGet, "/api/eda/"+id+"/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("eda %d: %v", rec.Code, out)
	}
	eda := out["eda"].(map[string]any)
	stats := eda["summary_stats"].(map[string]any)
	if views := stats["views"].(map[string]any); views["count"] != 7.0 {
		t.Fatalf("eda on cleaned data should see 7 filled views, got %v", views)
	}

	rec, out = call(t, h, http.MethodPost, "/api/train/", fmt.Sprintf(`{"dataset_id":%q,"target_column":"likes","problem_type":"regression"}`, id))
	if rec.Code != http.StatusCreated || out["message"] != "Model trained successfully." {
		t.Fatalf("train %d: %v", rec.Code, out)
	}
	m := out["model"].(map[string]any)
	modelID := m["id"].(string)
	metrics := m["metrics"].(map[string]any)
	if _, ok := metrics["rmse"]; !ok || metrics["feature_columns"] == nil || m["dataset"] != id {
		t.Fatalf("model = %v", m)
	}

	rec, out = call(t, h, http.MethodPost, "/api/predict/", fmt.Sprintf(`{"model_id":%q,"features":{"views":300,"platform":"instagram"}}`, modelID))
	if rec.Code != http.StatusOK || out["message"] != "Prediction generated successfully." {
		t.Fatalf("predict %d: %v", rec.Code, out)
	}
	if p := out["predictions"].([]any); len(p) != 1 {
		t.Fatalf("predictions = %v", p)
	}
	_, out = call(t, h, http.MethodPost, "/api/predict/", fmt.Sprintf(`{"model_id":%q,"features":[{"views":1},{"views":2}]}`, modelID))
	if p := out["predictions"].([]any); len(p) != 2 {
		t.Fatalf("batch predictions = %v", p)
	}
}

func TestBadRequests(t *testing.T) {
	h := New(Options{}).Handler()
	cases := []struct {
		name    string
		rec     *httptest.ResponseRecorder
		wantMsg string
	}{
		{"no file", upload(t, h, "", ""), "No file provided."},
		{"bad extension", upload(t, h, "notes.txt", "a"), "Unsupported file type."},
		{"legacy xls", upload(t, h, "old.xls", "a"), "Unsupported file type."},
	}
	for _, tc := range cases {
		if tc.rec.Code != http.StatusBadRequest || decode(t, tc.rec)["error"] != tc.wantMsg {
			t.Errorf("%s: %d %s", tc.name, tc.rec.Code, tc.rec.Body)
		}
	}

	rec, out := call(t, h, http.MethodGet, "/api/eda/missing/", "")
	if rec.Code != http.StatusBadRequest || out["error"] != "Dataset not found." {
		t.Errorf("eda missing: %d %v", rec.Code, out)
	}
	rec, out = call(t, h, http.MethodPost, "/api/train/", `{"dataset_id":"x"}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "dataset_id, target_column, and problem_type are required." {
		t.Errorf("train fields: %d %v", rec.Code, out)
	}
	rec, out = call(t, h, http.MethodPost, "/api/predict/", `{"model_id":"x"}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "model_id and features are required." {
		t.Errorf("predict fields: %d %v", rec.Code, out)
	}
	rec, out = call(t, h, http.MethodPost, "/api/predict/", `{"model_id":"x","features":{}}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "Model not found." {
		t.Errorf("predict model: %d %v", rec.Code, out)
	}

	id := decode(t, upload(t, h, "posts.csv", postsCSV))["dataset"].(map[string]any)["id"].(string)
	rec, out = call(t, h, http.MethodPost, "/api/train/", fmt.Sprintf(`{"dataset_id":%q,"target_column":"nope","problem_type":"regression"}`, id))
	if rec.Code != http.StatusBadRequest || !strings.Contains(out["error"].(string), "target column") {
		t.Errorf("unknown target: %d %v", rec.Code, out)
	}
	rec, _ = call(t, h, http.MethodPost, "/api/train/", fmt.Sprintf(`{"dataset_id":%q,"target_column":"likes","problem_type":"ranking"}`, id))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad problem type: %d", rec.Code)
	}
	rec, _ = call(t, h, http.MethodGet, "/api/train/", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET train: %d", rec.Code)
	}
}

type stubRuntime struct{ got ai.GenerateRequest }

func (s *stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.got = req
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "TikTok leads."}}}}, nil
}

func TestChatRelay(t *testing.T) {
	rec, out := call(t, New(Options{}).Handler(), http.MethodPost, "/api/chat/", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusBadRequest || out["error"] == nil {
		t.Fatalf("gate: %d %v", rec.Code, out)
	}

	rt := &stubRuntime{}
	h := New(Options{Chat: rt, ChatKey: "gsk"}).Handler()
	rec, out = call(t, h, http.MethodPost, "/api/chat/", `{"messages":[{"role":"user","content":"Which platform wins?"}],"data_context":{"headers":["platform"],"preview":[{"platform":"tiktok"}]}}`)
	if rec.Code != http.StatusOK || out["reply"] != "TikTok leads." {
		t.Fatalf("chat: %d %v", rec.Code, out)
	}
	if !strings.Contains(rt.got.Messages[0].Content, "**Columns:** platform") || rt.got.Model != ai.DefaultModel {
		t.Fatalf("relayed request = %+v", rt.got)
	}
}

func TestHealthSkipsRateLimit(t *testing.T) {
	h := New(Options{RateLimitPerMin: 1}).Handler()
	for i := 0; i < 3; i++ {
		if rec, _ := call(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("health %d: %d", i, rec.Code)
		}
	}
	if rec, _ := call(t, h, http.MethodGet, "/api/eda/x/", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("first api call: %d", rec.Code)
	}
	rec, out := call(t, h, http.MethodGet, "/api/eda/x/", "")
	if rec.Code != http.StatusTooManyRequests || out["error"] != "rate limit exceeded" || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second api call: %d %v", rec.Code, out)
	}
}
