package signal

import (
	"context"
	"net/http"
	"slices"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type SignalWSController struct {
	Orch     *app.Orchestrator
	Opts     ConnOptions
	upgrader websocket.Upgrader
}

func NewSignalWSController(orch *app.Orchestrator, opts ConnOptions, allowedOrigins []string) *SignalWSController {
	return &SignalWSController{
		Orch: orch,
		Opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from the allow list; "*" allows all.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleSignal upgrades the request and runs the connection's session
// until it ends. Room state is only touched after a successful upgrade.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	meta := domain.NewMember(c.GetString("client_token"), c.ClientIP())
	conn := NewWsSignalConn(sid, meta, ws, ctl.Opts)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", meta.Client).Str("room", string(roomID)).Msg("new WS connection")

	var wg conc.WaitGroup
	wg.Go(conn.writePump)
	ctl.Orch.Serve(ctx, roomID, conn)
	wg.Wait()
}
