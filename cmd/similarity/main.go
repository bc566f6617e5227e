package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"semantic-similarity/internal/app"
	"semantic-similarity/internal/grader"
	"semantic-similarity/internal/httputil"
	"semantic-similarity/internal/metrics"
	"semantic-similarity/internal/script"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.Log.Info("similarity service listening", "addr", srv.Addr, "model", deps.Config.ModelID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		deps.Log.Error("server error", "err", err)
	}
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Config.RequestTimeout)

	r.Post("/semantic-similarity", similarityHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))
	r.Handle("/metrics", metrics.Handler())
	return r
}

func similarityHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := http.StatusOK
		defer func() {
			metrics.ScoreRequests.WithLabelValues("http", strconv.Itoa(status)).Inc()
			metrics.ScoreLatency.WithLabelValues("http").Observe(time.Since(start).Seconds())
		}()

		log := deps.Log.With("request_id", middleware.GetReqID(r.Context()))

		r.Body = http.MaxBytesReader(w, r.Body, deps.Config.MaxBodyBytes)
		var req grader.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status = http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			httputil.Fail(log, w, "invalid payload", err, status)
			return
		}

		resp, err := deps.Grader.Score(r.Context(), req)
		if err != nil {
			status = httputil.StatusFor(err)
			if status == http.StatusBadRequest {
				httputil.ValidationError(log, w, err)
				return
			}
			httputil.Fail(log, w, "failed to score answer", err, status)
			return
		}

		log.Info("similarity scored",
			"romanized", script.IsRomanized(*req.UserAnswer),
			"references", len(req.ReferenceAnswers),
			"keywords", len(req.Keywords),
			"matched_keywords", len(resp.MatchedKeywords),
			"semantic_similarity", resp.SemanticSimilarity,
			"keyword_similarity_score", resp.KeywordSimilarityScore,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
