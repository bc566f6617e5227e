package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NewNATS constructs a NATS request/reply responder.
func NewNATS(log *slog.Logger, nc *nats.Conn) Responder {
	return &natsResponder{log: log, nc: nc}
}

type natsResponder struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsResponder) Serve(ctx context.Context, subject, group string, handler Handler) error {
	sub, err := q.nc.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	q.log.Info("serving requests", "subject", subject, "group", group)
	<-ctx.Done()
	return sub.Drain()
}

func (q *natsResponder) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	requestID := msg.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := q.log.With("request_id", requestID, "subject", msg.Subject)

	if msg.Reply == "" {
		log.Warn("dropping request without reply subject")
		return
	}

	reply := handler(ctx, Message{Subject: msg.Subject, RequestID: requestID, Data: msg.Data})

	resp := nats.NewMsg(msg.Reply)
	resp.Header.Set(HeaderRequestID, requestID)
	resp.Data = reply
	if err := msg.RespondMsg(resp); err != nil {
		log.Error("failed to send reply", "err", err)
	}
}
