package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/narrator"
	"github.com/voicedeck/voicedeck/internal/protocol"
	"github.com/voicedeck/voicedeck/internal/shared"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSServer exposes the presenter endpoints: the websocket that carries
// the voice session and a small REST surface for reading the deck.
type WSServer struct {
	store     deck.Store
	responder narrator.Responder
	history   transcripts
	logger    *slog.Logger
}

func NewWSServer(store deck.Store, responder narrator.Responder, hist transcripts, logger *slog.Logger) *WSServer {
	return &WSServer{
		store:     store,
		responder: responder,
		history:   hist,
		logger:    logger.With("component", "ws_server"),
	}
}

func (s *WSServer) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleConnection)

	api := e.Group("/api/v1")
	api.GET("/slides", s.ListSlides)
	api.GET("/slides/:id", s.GetSlide)
}

func (s *WSServer) HandleConnection(c echo.Context) error {
	slides, err := s.store.List(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to load deck", "error", err)
		return shared.InternalError("deck_unavailable", "could not load the slide deck")
	}
	if len(slides) == 0 {
		return shared.InternalError("deck_empty", "the slide deck has no slides")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := newClientConn(ws, s.logger)
	presenter := NewPresenter(conn, slides, s.responder, s.history, s.logger)

	s.logger.Info("presenter connected", "remote", ws.RemoteAddr().String())

	go conn.writePump()
	presenter.sendEvent(protocol.NewConnectionStatus(protocol.StatusConnected, ""))
	conn.readPump(presenter.HandleFrame)
	presenter.Shutdown()

	s.logger.Info("presenter disconnected", "remote", ws.RemoteAddr().String())
	return nil
}

func (s *WSServer) ListSlides(c echo.Context) error {
	slides, err := s.store.List(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to list slides", "error", err)
		return shared.InternalError("deck_unavailable", "could not load the slide deck")
	}
	return c.JSON(http.StatusOK, slides)
}

func (s *WSServer) GetSlide(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return shared.BadRequest("invalid_slide_id", "slide id must be an integer")
	}

	slide, err := s.store.Get(c.Request().Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFoundError("slide_not_found", "no such slide")
	}
	if err != nil {
		s.logger.Error("failed to load slide", "error", err, "id", id)
		return shared.InternalError("deck_unavailable", "could not load the slide")
	}
	return c.JSON(http.StatusOK, slide)
}
