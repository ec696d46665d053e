package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/middleware"
	"github.com/prepium/ieltsprep-backend/internal/service"
	"github.com/prepium/ieltsprep-backend/internal/session"
	ws "github.com/prepium/ieltsprep-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an attempt session over WebSocket: client actions in,
// timer/phase/sync events out.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Upgrades to WebSocket. Session events (ticks, phase changes, scroll-to,
// sync state) are pushed as they happen; client actions mirror the HTTP
// endpoints.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sess, err := h.attemptService.Session(attemptID, claims.UserID)
	if err != nil {
		_, code := domainErrCode(err)
		ws.WriteError(conn, string(code), "no active session for this attempt")
		return
	}

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Gorilla permits one writer at a time; everything funnels through out
	// and a single writer goroutine. done stops the writer and unhooks the
	// listener sends when the read loop exits.
	out := make(chan interface{}, 64)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case v := <-out:
				if err := ws.WriteTyped(conn, v); err != nil {
					conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	send := func(v interface{}) {
		select {
		case out <- v:
		case <-done:
		default:
			// Slow consumer; dropping a tick is harmless.
			wsLog.Debug().Msg("Event dropped, send buffer full")
		}
	}

	sess.SetListener(func(ev session.Event) {
		switch ev.Type {
		case session.EventTimerTick:
			send(ws.TickResponse{Event: ws.EventTimerTick, Remaining: ev.Remaining})
		case session.EventReviewTick:
			send(ws.TickResponse{Event: ws.EventReviewTick, Remaining: ev.Remaining})
		case session.EventPhaseChange:
			send(ws.PhaseResponse{Event: ws.EventPhaseChange, Phase: ev.Phase})
		case session.EventScrollTo:
			send(ws.ScrollToResponse{Event: ws.EventScrollTo, QID: ev.QuestionID.String()})
		case session.EventSync:
			send(ws.SyncResponse{Event: ws.EventSyncState, Pending: ev.Pending})
		}
	})
	defer sess.SetListener(nil)

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			send(ws.ErrorResponse{Event: ws.EventError, Error: "malformed frame"})
			continue
		}

		h.dispatch(c, wsLog, send, raw, env.Action, attemptID, claims.UserID)
	}
}

func (h *WSHandler) dispatch(c *gin.Context, wsLog zerolog.Logger, send func(interface{}), raw []byte, action ws.Action, attemptID uuid.UUID, studentID int) {
	ctx := c.Request.Context()

	fail := func(err error) {
		_, code := domainErrCode(err)
		send(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: err.Error()})
	}
	ok := func() {
		send(ws.SuccessResponse{Event: ws.EventSuccess, Action: action, Status: "ok"})
	}

	switch action {
	case ws.ActionPing:
		send(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionSaveAnswer:
		req, err := ws.Decode[ws.SaveAnswerRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		qid, err := uuid.Parse(req.QID)
		if err != nil {
			fail(err)
			return
		}
		if err := h.attemptService.SaveAnswer(ctx, attemptID, studentID, qid, req.Answer); err != nil {
			fail(err)
			return
		}
		ok()

	case ws.ActionToggleChoice:
		req, err := ws.Decode[ws.ToggleChoiceRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		qid, err := uuid.Parse(req.QID)
		if err != nil {
			fail(err)
			return
		}
		if err := h.attemptService.ToggleChoice(ctx, attemptID, studentID, qid, req.Option); err != nil {
			fail(err)
			return
		}
		ok()

	case ws.ActionToggleFlag:
		req, err := ws.Decode[ws.ToggleFlagRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		qid, err := uuid.Parse(req.QID)
		if err != nil {
			fail(err)
			return
		}
		flagged, err := h.attemptService.ToggleFlag(attemptID, studentID, qid)
		if err != nil {
			fail(err)
			return
		}
		send(ws.FlagResponse{Event: ws.EventSuccess, QID: req.QID, Flagged: flagged})

	case ws.ActionNavigate:
		req, err := ws.Decode[ws.NavigateRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		qid, err := uuid.Parse(req.QID)
		if err != nil {
			fail(err)
			return
		}
		if err := h.attemptService.Navigate(attemptID, studentID, qid); err != nil {
			fail(err)
			return
		}
		ok()

	case ws.ActionAudioReady:
		req, err := ws.Decode[ws.AudioReadyRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		sid, err := uuid.Parse(req.SectionID)
		if err != nil {
			fail(err)
			return
		}
		count, err := h.attemptService.AudioReady(ctx, attemptID, studentID, sid)
		if err != nil {
			fail(err)
			return
		}
		send(ws.AudioResponse{Event: ws.EventSuccess, SectionID: req.SectionID, PlayCount: count})

	case ws.ActionAudioFailed:
		req, err := ws.Decode[ws.AudioFailedRequest](raw)
		if err != nil {
			fail(err)
			return
		}
		sid, err := uuid.Parse(req.SectionID)
		if err != nil {
			fail(err)
			return
		}
		if err := h.attemptService.AudioFailed(attemptID, studentID, sid, req.Reason); err != nil {
			fail(err)
			return
		}
		ok()

	case ws.ActionStartReview:
		if err := h.attemptService.StartReview(ctx, attemptID, studentID); err != nil {
			fail(err)
			return
		}
		ok()

	case ws.ActionSubmit:
		result, err := h.attemptService.Submit(ctx, attemptID, studentID)
		if err != nil {
			fail(err)
			return
		}
		send(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})

	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		send(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(action)})
	}
}
