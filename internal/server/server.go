// Package server exposes the analytics backend over HTTP: dataset upload,
// preprocessing, EDA, model training, prediction and a chat relay.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/registry"
)

// MaxUploadBytes bounds multipart uploads.
const MaxUploadBytes = 64 << 20

// Options configures a Server.
type Options struct {
	Repo registry.Repository
	// Chat is optional; without it or without ChatKey the chat route
	// answers 400.
	Chat        ai.Runtime
	ChatKey     string
	ChatModel   string
	KeyOptional bool
	// RateLimitPerMin of 0 disables limiting.
	RateLimitPerMin int
	// TrustProxy keys the limiter on X-Forwarded-For instead of the peer.
	TrustProxy bool
	Logger     *zap.Logger
}

// Server routes the REST contract onto a registry.
type Server struct {
	opts    Options
	log     *zap.Logger
	limiter *RateLimiter
	handler http.Handler
}

func New(opts Options) *Server {
	if opts.Repo == nil {
		opts.Repo = registry.NewMemory()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{opts: opts, log: log.Named("server")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/upload/", s.handleUpload)
	mux.HandleFunc("POST /api/preprocess/{id}/", s.handlePreprocess)
	mux.HandleFunc("GET /api/eda/{id}/", s.handleEDA)
	mux.HandleFunc("POST /api/train/", s.handleTrain)
	mux.HandleFunc("POST /api/predict/", s.handlePredict)
	mux.HandleFunc("POST /api/chat/", s.handleChat)
	if opts.RateLimitPerMin > 0 {
		s.limiter = NewRateLimiter(opts.RateLimitPerMin, time.Minute)
	}
	s.handler = s.logRequests(rateLimit(s.limiter, opts.TrustProxy, mux))
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", zap.String("addr", addr))

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-sweep.C:
			if s.limiter != nil {
				s.limiter.Sweep()
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("ip", clientIP(r, s.opts.TrustProxy)),
		}
		if status >= 500 {
			s.log.Error("request", fields...)
		} else {
			s.log.Info("request", fields...)
		}
	})
}
