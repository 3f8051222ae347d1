package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/utils"
)

// PreviewRows is how many leading rows are shown to the model.
const PreviewRows = 5

const (
	Temperature = 0.7
	MaxTokens   = 1024

	PredictTemperature = 0.5
	PredictMaxTokens   = 512
)

const plainPrompt = "You are a helpful AI assistant specialized in data analytics."

// DataContext is the dataset slice attached to a conversation.
type DataContext struct {
	Headers []string         `json:"headers"`
	Preview []map[string]any `json:"preview"`
}

// ContextFrom returns nil for an empty dataset.
func ContextFrom(ds dataset.Dataset) *DataContext {
	if ds.Len() == 0 {
		return nil
	}
	dc := &DataContext{Headers: append([]string(nil), ds.Headers...)}
	for i := 0; i < ds.Len() && i < PreviewRows; i++ {
		row := make(map[string]any, len(ds.Headers))
		for _, h := range ds.Headers {
			row[h] = ds.Rows[i][h]
		}
		dc.Preview = append(dc.Preview, row)
	}
	return dc
}

// SystemPrompt renders the analyst persona with the data context, or the
// generic persona when dc is nil.
func SystemPrompt(dc *DataContext) string {
	if dc == nil {
		return plainPrompt
	}
	rows := dc.Preview
	if len(rows) > PreviewRows {
		rows = rows[:PreviewRows]
	}
	return fmt.Sprintf(`You are an expert data analyst assistant. You have access to the user's dataset with the following structure:

**Columns:** %s

**Sample Data (first %d rows):**
%s

Answer questions about this data, provide insights, suggest analyses, and help with data-driven decisions. Be concise and actionable.`,
		strings.Join(dc.Headers, ", "), PreviewRows, previewJSON(dc.Headers, rows))
}

// previewJSON renders rows as indented JSON with keys in header order.
func previewJSON(headers []string, rows []map[string]any) string {
	var compact bytes.Buffer
	compact.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			compact.WriteByte(',')
		}
		compact.WriteByte('{')
		for j, k := range orderedKeys(headers, row) {
			if j > 0 {
				compact.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			vb, err := json.Marshal(row[k])
			if err != nil {
				vb = []byte("null")
			}
			compact.Write(kb)
			compact.WriteByte(':')
			compact.Write(vb)
		}
		compact.WriteByte('}')
	}
	compact.WriteByte(']')
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return compact.String()
	}
	return out.String()
}

func orderedKeys(headers []string, row map[string]any) []string {
	keys := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	for _, h := range headers {
		if _, ok := row[h]; ok && !seen[h] {
			keys = append(keys, h)
			seen[h] = true
		}
	}
	var extra []string
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// BuildRequest assembles a completion request: the system prompt, then the
// transcript. Preview rows are dropped from the end until the prompt fits the
// model's window next to the transcript and the reply budget.
func BuildRequest(model string, dc *DataContext, transcript []dataset.Message) ai.GenerateRequest {
	if model == "" {
		model = ai.DefaultModel
	}
	used := 0
	msgs := make([]ai.Message, 0, len(transcript)+1)
	msgs = append(msgs, ai.Message{Role: "system"})
	for _, m := range transcript {
		used += utils.CountTokens(m.Content)
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	budget := ai.ContextWindow(model, 8192) - MaxTokens - used
	msgs[0].Content = fitPrompt(dc, budget)
	return ai.GenerateRequest{Model: model, Messages: msgs, MaxTokens: MaxTokens, Temperature: Temperature}
}

func fitPrompt(dc *DataContext, budget int) string {
	if dc == nil {
		return plainPrompt
	}
	trimmed := *dc
	if len(trimmed.Preview) > PreviewRows {
		trimmed.Preview = trimmed.Preview[:PreviewRows]
	}
	for {
		p := SystemPrompt(&trimmed)
		if utils.CountTokens(p) <= budget {
			return p
		}
		if len(trimmed.Preview) == 0 {
			return plainPrompt
		}
		trimmed.Preview = trimmed.Preview[:len(trimmed.Preview)-1]
	}
}

// PredictPrompt asks the model for a value of target given feature values.
func PredictPrompt(headers []string, target string, features map[string]string) string {
	fb, err := utils.PrettyJSON(features)
	if err != nil {
		fb = []byte("{}")
	}
	return fmt.Sprintf(`Based on the dataset with columns: %s,
predict the value of "%s" given these feature values:
%s

Provide a realistic prediction with confidence score and brief reasoning.`, strings.Join(headers, ", "), target, fb)
}
