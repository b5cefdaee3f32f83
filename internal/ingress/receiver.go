// Package ingress drives T_ingress: a NATS queue-group subscriber that
// feeds decoded orders to the lifecycle processor (C10). Grounded on the
// teacher's internal/exchange/ws.go read loop shape (tolerant decode,
// never let one bad message stop the loop), adapted from a WebSocket
// frame source to a NATS message source per SPEC_FULL.md §4.11's
// decision to substitute core NATS pub/sub for the absent ZeroMQ
// dependency.
package ingress

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/latentspeed/tradingengine/internal/ingest"
	"github.com/latentspeed/tradingengine/internal/lifecycle"
)

// SubjectOrders is the NATS subject carrying inbound ExecutionOrder JSON.
const SubjectOrders = "exec.orders"

// QueueGroup is the NATS queue group name, so multiple gateway instances
// can share one subject without double-processing a message.
const QueueGroup = "tradingengine-ingress"

// Receiver subscribes to SubjectOrders and hands each decoded order to a
// Processor.
type Receiver struct {
	conn      *nats.Conn
	parser    *ingest.Parser
	processor *lifecycle.Processor
	logger    *slog.Logger
}

// New builds a Receiver. It does not subscribe until Run is called.
func New(conn *nats.Conn, parser *ingest.Parser, processor *lifecycle.Processor, logger *slog.Logger) *Receiver {
	return &Receiver{conn: conn, parser: parser, processor: processor, logger: logger}
}

// Run subscribes to SubjectOrders under QueueGroup and processes messages
// until ctx is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	sub, err := r.conn.QueueSubscribe(SubjectOrders, QueueGroup, func(msg *nats.Msg) {
		r.handle(ctx, msg.Data)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

func (r *Receiver) handle(ctx context.Context, raw []byte) {
	order, ok := r.parser.Parse(raw)
	if !ok {
		r.logger.Warn("ingress: dropped malformed or unparseable order")
		return
	}
	r.processor.Process(ctx, order)
}
