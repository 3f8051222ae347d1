package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

type fakeRuntime struct {
	reply  string
	err    error
	during func()
	got    []ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = append(f.got, req)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}}}, nil
}

func loaded(n int) *dataset.Store {
	s := dataset.NewStore()
	var rows []dataset.Record
	for i := 0; i < n; i++ {
		rows = append(rows, dataset.Record{"platform": "twitter", "likes": "1"})
	}
	s.LoadDataset(rows, []string{"platform", "likes"})
	return s
}

func TestSendAppendsBothTurns(t *testing.T) {
	store := loaded(8)
	rt := &fakeRuntime{reply: "Engagement is flat."}
	svc := New(store, rt, Options{APIKey: "gsk"})

	reply, err := svc.Send(context.Background(), "How is engagement?")
	if err != nil || reply != "Engagement is flat." {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
	tr := store.Scratch().Transcript
	if len(tr) != 2 || tr[0].Role != "user" || tr[1].Content != reply {
		t.Fatalf("transcript = %+v", tr)
	}
	req := rt.got[0]
	if req.Model != "mixtral-8x7b-32768" || req.Temperature != 0.7 || req.MaxTokens != 1024 {
		t.Fatalf("request params = %+v", req)
	}
	sys := req.Messages[0]
	if sys.Role != "system" || !strings.Contains(sys.Content, "**Columns:** platform, likes") {
		t.Fatalf("system prompt = %q", sys.Content)
	}
	if strings.Count(sys.Content, `"platform": "twitter"`) != PreviewRows {
		t.Fatalf("expected %d preview rows in %q", PreviewRows, sys.Content)
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != "user" || last.Content != "How is engagement?" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestSendWithoutDataUsesPlainPrompt(t *testing.T) {
	rt := &fakeRuntime{reply: "hi"}
	svc := New(dataset.NewStore(), rt, Options{APIKey: "gsk"})
	if _, err := svc.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if got := rt.got[0].Messages[0].Content; got != plainPrompt {
		t.Fatalf("system prompt = %q", got)
	}
}

func TestSendGates(t *testing.T) {
	store := loaded(1)
	rt := &fakeRuntime{reply: "x"}
	if _, err := New(store, rt, Options{APIKey: "k"}).Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := New(store, rt, Options{}).Send(context.Background(), "hi"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("no key: %v", err)
	}
	if len(store.Scratch().Transcript) != 0 || len(rt.got) != 0 {
		t.Fatal("gated sends must not touch state or call the runtime")
	}
	if _, err := New(store, rt, Options{KeyOptional: true}).Send(context.Background(), "hi"); err != nil {
		t.Fatalf("local runtime: %v", err)
	}
}

func TestSendFailureAppendsFallback(t *testing.T) {
	store := loaded(1)
	boom := errors.New("boom")
	svc := New(store, &fakeRuntime{err: boom}, Options{APIKey: "k"})
	reply, err := svc.Send(context.Background(), "hi")
	if !errors.Is(err, boom) || reply != FallbackReply {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
	tr := store.Scratch().Transcript
	if len(tr) != 2 || tr[1].Content != FallbackReply {
		t.Fatalf("transcript = %+v", tr)
	}
}

func TestSendEmptyCompletion(t *testing.T) {
	svc := New(loaded(1), &fakeRuntime{}, Options{APIKey: "k"})
	if reply, err := svc.Send(context.Background(), "hi"); err != nil || reply != EmptyReply {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
}

func TestSendDroppedAfterReset(t *testing.T) {
	store := loaded(3)
	rt := &fakeRuntime{reply: "late"}
	rt.during = store.ResetAll
	_, err := New(store, rt, Options{APIKey: "k"}).Send(context.Background(), "hi")
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v", err)
	}
	if n := len(store.Scratch().Transcript); n != 0 {
		t.Fatalf("transcript after reset has %d messages", n)
	}
}

func TestBuildRequestTrimsPreview(t *testing.T) {
	dc := &DataContext{Headers: []string{"text"}}
	for i := 0; i < PreviewRows; i++ {
		dc.Preview = append(dc.Preview, map[string]any{"text": strings.Repeat("x", 40000)})
	}
	req := BuildRequest("mixtral-8x7b-32768", dc, nil)
	sys := req.Messages[0].Content
	if n := strings.Count(sys, `"text":`); n >= PreviewRows || n == 0 {
		t.Fatalf("kept %d preview rows", n)
	}
	huge := []dataset.Message{{Role: "user", Content: strings.Repeat("y", 4*40000)}}
	if got := BuildRequest("", dc, huge).Messages[0].Content; got != plainPrompt {
		t.Fatalf("expected plain prompt when nothing fits")
	}
}

func TestPreviewKeepsHeaderOrder(t *testing.T) {
	got := previewJSON([]string{"b", "a"}, []map[string]any{{"a": "1", "b": "2", "z": "3"}})
	want := "[\n  {\n    \"b\": \"2\",\n    \"a\": \"1\",\n    \"z\": \"3\"\n  }\n]"
	if got != want {
		t.Fatalf("preview =\n%s\nwant\n%s", got, want)
	}
}

func TestPredictWithContext(t *testing.T) {
	store := loaded(2)
	rt := &fakeRuntime{reply: "About 120 likes, confidence 70%."}
	svc := New(store, rt, Options{APIKey: "k"})
	out, err := svc.PredictWithContext(context.Background(), "likes", map[string]string{"platform": "twitter"})
	if err != nil || out != rt.reply {
		t.Fatalf("out=%q err=%v", out, err)
	}
	req := rt.got[0]
	if req.Temperature != 0.5 || req.MaxTokens != 512 || req.Messages[0].Content != "You are a predictive analytics expert." {
		t.Fatalf("request = %+v", req)
	}
	if !strings.Contains(req.Messages[1].Content, `predict the value of "likes"`) {
		t.Fatalf("prompt = %q", req.Messages[1].Content)
	}
	if len(store.Scratch().Transcript) != 0 {
		t.Fatal("prediction must not touch the transcript")
	}
}
