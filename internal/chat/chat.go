// Package chat keeps the assistant conversation attached to the loaded
// dataset and relays it to a completion runtime.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// FallbackReply is appended when the completion call fails so the
// transcript keeps alternating.
const FallbackReply = "Sorry, I encountered an error. Please check your API key and try again."

// EmptyReply stands in for a completion without content.
const EmptyReply = "No response generated."

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrMissingAPIKey = errors.New("please set your Groq API key (socialhub config set api_key <key>)")
	// ErrSuperseded means the session was reset while the request was in flight.
	ErrSuperseded = errors.New("chat reply discarded: session was reset")
)

// Options configures a Service.
type Options struct {
	APIKey string
	Model  string
	// KeyOptional lifts the credential gate for local runtimes.
	KeyOptional bool
	Logger      *zap.Logger
}

// Service sends chat turns against a dataset store.
type Service struct {
	store   *dataset.Store
	runtime ai.Runtime
	opts    Options
	log     *zap.Logger
}

// New returns a chat service. rt may be nil when no provider is configured;
// Send then fails the credential gate.
func New(store *dataset.Store, rt ai.Runtime, opts Options) *Service {
	if opts.Model == "" {
		opts.Model = ai.DefaultModel
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, runtime: rt, opts: opts, log: log.Named("chat")}
}

func (s *Service) ready() error {
	if s.runtime == nil || (!s.opts.KeyOptional && strings.TrimSpace(s.opts.APIKey) == "") {
		return ErrMissingAPIKey
	}
	return nil
}

// Send appends text as a user turn, asks the runtime for a reply and
// appends it. On failure FallbackReply is appended and the error returned.
// Nothing is written when the store was reset mid-request.
func (s *Service) Send(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	ds, sc, gen := s.store.State()
	user := dataset.Message{Role: "user", Content: text}
	transcript := append(sc.Transcript, user)
	if !s.store.UpdateAt(gen, func(_ *dataset.Dataset, sc *dataset.Scratch) {
		sc.Transcript = append(sc.Transcript, user)
	}) {
		return "", ErrSuperseded
	}

	req := BuildRequest(s.opts.Model, ContextFrom(ds), transcript)
	s.log.Debug("sending chat request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("rows", ds.Len()))
	resp, err := s.runtime.Generate(ctx, req)

	reply := EmptyReply
	if err != nil {
		reply = FallbackReply
		s.log.Warn("chat request failed", zap.Error(err), zap.Bool("transient", ai.Transient(err)))
	} else if t := resp.Text(); t != "" {
		reply = t
	}
	if !s.store.UpdateAt(gen, func(_ *dataset.Dataset, sc *dataset.Scratch) {
		sc.Transcript = append(sc.Transcript, dataset.Message{Role: "assistant", Content: reply})
	}) {
		s.log.Info("dropping chat reply after reset")
		return "", ErrSuperseded
	}
	if err != nil {
		return reply, fmt.Errorf("chat: %w", err)
	}
	if resp.RequestID != "" {
		s.log.Debug("chat reply", zap.String("request_id", resp.RequestID), zap.Int("tokens", resp.Usage.TotalTokens))
	}
	return reply, nil
}

// PredictWithContext asks the runtime for a reasoned prediction of target.
// The transcript is not touched.
func (s *Service) PredictWithContext(ctx context.Context, target string, features map[string]string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	headers := s.store.Headers()
	resp, err := s.runtime.Generate(ctx, ai.GenerateRequest{
		Model: s.opts.Model,
		Messages: []ai.Message{
			{Role: "system", Content: "You are a predictive analytics expert."},
			{Role: "user", Content: PredictPrompt(headers, target, features)},
		},
		MaxTokens:   PredictMaxTokens,
		Temperature: PredictTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("predict with context: %w", err)
	}
	return resp.Text(), nil
}
