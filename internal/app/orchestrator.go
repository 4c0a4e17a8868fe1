package app

import (
	"context"
	"errors"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/metrics"
	"github.com/rs/zerolog/log"
)

type LeaveReason string

const (
	ReasonClosed    LeaveReason = "closed"
	ReasonError     LeaveReason = "error"
	ReasonMalformed LeaveReason = "malformed"
	ReasonCanceled  LeaveReason = "canceled"
	ReasonKicked    LeaveReason = "kicked"
)

// Orchestrator runs the per-connection session protocol on top of the
// registry. Limiter and Policy are optional.
type Orchestrator struct {
	Registry *Registry
	Limiter  Limiter
	Policy   Policy
	Metrics  *metrics.Metrics
}

// Serve joins conn to the room and relays its messages until the stream
// ends. The connection leaves its room exactly once and is closed on return.
func (o *Orchestrator) Serve(ctx context.Context, roomID domain.RoomID, conn core.Connection) LeaveReason {
	logger := log.With().Str("module", "app.orchestrator").Str("room", string(roomID)).Str("sid", string(conn.ID())).Logger()

	o.Registry.Join(roomID, conn)
	stop := context.AfterFunc(ctx, conn.Close)

	reason := o.relay(ctx, roomID, conn)

	stop()
	o.OnDisconnect(roomID, conn)
	if o.Limiter != nil {
		o.Limiter.Forget(conn.ID())
	}
	o.Metrics.SessionEnded(string(reason))
	logger.Info().Str("reason", string(reason)).Msg("session ended")
	return reason
}

func (o *Orchestrator) relay(ctx context.Context, roomID domain.RoomID, conn core.Connection) LeaveReason {
	for {
		in := conn.Receive()
		switch in.Kind {
		case core.InboundClose:
			if ctx.Err() != nil {
				return ReasonCanceled
			}
			return ReasonClosed
		case core.InboundError:
			if ctx.Err() != nil {
				return ReasonCanceled
			}
			log.Debug().Err(in.Err).Str("module", "app.orchestrator").Str("sid", string(conn.ID())).Msg("receive error")
			return ReasonError
		}

		if o.Limiter != nil && !o.Limiter.Allow(conn.ID()) {
			o.Metrics.RateLimited()
			if o.Policy != nil && o.Policy.OnRateLimited(conn) == KickMember {
				return ReasonKicked
			}
			continue
		}

		if err := o.OnFrame(roomID, conn, in.Payload); err != nil {
			log.Warn().Err(err).Str("module", "app.orchestrator").Str("sid", string(conn.ID())).Msg("dropping connection")
			if errors.Is(err, core.ErrMalformedPayload) {
				return ReasonMalformed
			}
			return ReasonError
		}
	}
}

// OnFrame relays one inbound frame to the rest of the room.
func (o *Orchestrator) OnFrame(roomID domain.RoomID, from core.Connection, data core.Frame) error {
	env, err := core.ParseEnvelope(data)
	if err != nil {
		return err
	}
	if env.Type == core.TypeJoin {
		if m := from.Meta(); m != nil {
			m.SetName(env.DisplayName())
		}
	}
	out, err := env.Outbound()
	if err != nil {
		return err
	}
	o.Registry.Broadcast(roomID, out, from)
	o.Metrics.Relayed(string(env.Type), env.Type.Known())
	return nil
}

// OnDisconnect is the single teardown path; safe to call more than once.
func (o *Orchestrator) OnDisconnect(roomID domain.RoomID, conn core.Connection) {
	o.Registry.Leave(roomID, conn)
	conn.Close()
}
