package turn

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/rpc/connectjson"
)

// ConnectPerformProcedure is the Connect route of the bidi turn stream.
const ConnectPerformProcedure = "/tta.turn.v1.TurnService/Perform"

// NewConnectHandler builds a Connect bidi stream handler for Perform.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectHandler{runner: runner, metrics: metrics}
	return ConnectPerformProcedure, connect.NewBidiStreamHandler(ConnectPerformProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.TurnStreamRequest, rpc.TurnEvent]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		h.metrics.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Turn == nil {
		h.metrics.RecordTransportError("connect", "missing_turn")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include turn payload"))
	}

	events, err := h.runner.Run(ctx, *first.Turn)
	if err != nil {
		if errors.Is(err, ErrEmptyInstruction) {
			return connect.NewError(connect.CodeInvalidArgument, err)
		}
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInternal, err)
	}

	// A cancel message interrupts the turn; a closed request side does not.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	var sendErr error
	for ev := range events {
		if sendErr != nil {
			continue
		}
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			sendErr = err
			cancel()
		}
	}
	return sendErr
}
