package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"semantic-similarity/internal/app"
	"semantic-similarity/internal/grader"
	"semantic-similarity/internal/httputil"
	"semantic-similarity/internal/metrics"
	"semantic-similarity/internal/queue"
)

// replyEnvelope is the body of every NATS reply. Exactly one field is set.
type replyEnvelope struct {
	Result *grader.Response `json:"result,omitempty"`
	Error  *replyError      `json:"error,omitempty"`
}

type replyError struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.BuildWorker(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("similarity worker starting", "subject", deps.Config.QueueSubject, "group", deps.Config.QueueGroup)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Serve(ctx, deps.Config.QueueSubject, deps.Config.QueueGroup, scoreHandler(deps.Deps))
	})

	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Deps, "worker")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("similarity worker stopped", "err", err)
	}
}

func scoreHandler(deps app.Deps) queue.Handler {
	return func(ctx context.Context, msg queue.Message) []byte {
		start := time.Now()
		log := deps.Log.With("request_id", msg.RequestID)

		if deps.Config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Config.RequestTimeout)
			defer cancel()
		}

		env, status := score(ctx, deps, log, msg.Data)
		metrics.ScoreRequests.WithLabelValues("nats", strconv.Itoa(status)).Inc()
		metrics.ScoreLatency.WithLabelValues("nats").Observe(time.Since(start).Seconds())

		body, err := json.Marshal(env)
		if err != nil {
			log.Error("failed to encode reply", "err", err)
			return []byte(`{"error":{"status":500,"message":"failed to encode reply"}}`)
		}
		return body
	}
}

func score(ctx context.Context, deps app.Deps, log *slog.Logger, data []byte) (replyEnvelope, int) {
	if deps.Config.MaxBodyBytes > 0 && int64(len(data)) > deps.Config.MaxBodyBytes {
		log.Warn("payload too large", "bytes", len(data))
		return failure(http.StatusRequestEntityTooLarge, "payload too large", nil), http.StatusRequestEntityTooLarge
	}

	var req grader.Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Warn("invalid payload", "err", err)
		return failure(http.StatusBadRequest, "invalid payload", nil), http.StatusBadRequest
	}

	resp, err := deps.Grader.Score(ctx, req)
	if err != nil {
		status := httputil.StatusFor(err)
		var verr *grader.ValidationError
		if errors.As(err, &verr) {
			log.Warn("request validation failed", "details", verr.Details)
			return failure(status, "invalid request", verr.Details), status
		}
		if status >= http.StatusInternalServerError {
			log.Error("failed to score answer", "err", err, "status", status)
		} else {
			log.Warn("failed to score answer", "err", err, "status", status)
		}
		return failure(status, "failed to score answer", nil), status
	}

	log.Info("similarity scored",
		"references", len(req.ReferenceAnswers),
		"keywords", len(req.Keywords),
		"matched_keywords", len(resp.MatchedKeywords),
		"semantic_similarity", resp.SemanticSimilarity,
		"keyword_similarity_score", resp.KeywordSimilarityScore,
	)
	return replyEnvelope{Result: &resp}, http.StatusOK
}

func failure(status int, message string, details []string) replyEnvelope {
	return replyEnvelope{Error: &replyError{Status: status, Message: message, Details: details}}
}
