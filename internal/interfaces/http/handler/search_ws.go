package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const (
	searchWriteTimeout = 5 * time.Second
	searchIdleTimeout  = 2 * time.Minute
	searchMaxFrame     = 1024
)

// SearchSocketHandler runs a debounced search per websocket connection.
// The client sends one frame per keystroke with the full input; the server
// pushes every state change of the search, loading states included.
type SearchSocketHandler struct {
	BaseHandler
	queries  *catalogapp.Service
	upgrader *websocket.Upgrader
}

// NewSearchSocketHandler creates a websocket search handler. checkOrigin
// may be nil to accept any origin.
func NewSearchSocketHandler(queries *catalogapp.Service, checkOrigin func(r *http.Request) bool) *SearchSocketHandler {
	upgrader := &websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      checkOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &SearchSocketHandler{queries: queries, upgrader: upgrader}
}

// Serve handles GET /ws/search
// Websocket: send {"q": "..."} per keystroke, receive search states
func (h *SearchSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client
		logger.L(c.Request.Context()).Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := logger.L(c.Request.Context())
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	search := h.queries.Search(ctx, catalogapp.WithObserver[string, []catalog.Product](func(state catalogapp.State[[]catalog.Product]) {
		_ = conn.SetWriteDeadline(time.Now().Add(searchWriteTimeout))
		if err := conn.WriteJSON(SearchPush{
			Products:   state.Data,
			Loading:    state.Loading,
			Error:      state.Message,
			Generation: state.Generation,
		}); err != nil {
			log.Debug("Search push failed", zap.Error(err))
			cancel()
		}
	}))
	defer search.Close()

	conn.SetReadLimit(searchMaxFrame)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(searchIdleTimeout))
		var frame SearchFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Search socket closed", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		search.Type(frame.Q)
	}
}
