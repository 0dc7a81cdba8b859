package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open for the whole API
	},
}

// AskRequest is a question sent over the ask socket
type AskRequest struct {
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
}

// AskMessage is a server message on the ask socket.
// Type is "fragment", "done" or "error".
type AskMessage struct {
	Type         string `json:"type"`
	Content      string `json:"content,omitempty"`
	RelevantIDs  []int  `json:"relevant_ids,omitempty"`
	ResponseHTML string `json:"response_html,omitempty"`
	Error        string `json:"error,omitempty"`
}

// AskWebSocketHandler streams answers fragment by fragment
type AskWebSocketHandler struct {
	rag    interfaces.RAGService
	logger arbor.ILogger
}

// NewAskWebSocketHandler creates the streaming ask handler
func NewAskWebSocketHandler(ragService interfaces.RAGService, logger arbor.ILogger) *AskWebSocketHandler {
	return &AskWebSocketHandler{
		rag:    ragService,
		logger: logger,
	}
}

// HandleWebSocket handles GET /ask/ws. Each client message is one question;
// answers are streamed back in order and finish with a done or error message.
func (h *AskWebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Ask socket connected")

	for {
		var req AskRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		if err := h.answer(r, conn, req); err != nil {
			h.logger.Debug().Err(err).Msg("Ask socket closed during answer")
			return
		}
	}
}

// answer streams one question. The returned error is a write failure; pipeline
// errors are reported to the client as error messages.
func (h *AskWebSocketHandler) answer(r *http.Request, conn *websocket.Conn, req AskRequest) error {
	if req.Prompt == "" {
		return h.send(conn, AskMessage{Type: "error", Error: "Missing prompt field"})
	}

	var writeErr error
	answer, err := h.rag.AskStream(r.Context(), req.Prompt, func(fragment string) error {
		writeErr = h.send(conn, AskMessage{Type: "fragment", Content: fragment})
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to stream answer")
		return h.send(conn, AskMessage{Type: "error", Error: err.Error()})
	}

	if answer.NoResults {
		if err := h.send(conn, AskMessage{Type: "fragment", Content: models.NoResultsMessage}); err != nil {
			return err
		}
	}

	done := AskMessage{Type: "done", RelevantIDs: answer.RelevantIDs}
	if req.Format == "html" && !answer.NoResults {
		if html, err := RenderMarkdown(answer.Response); err == nil {
			done.ResponseHTML = html
		}
	}
	return h.send(conn, done)
}

func (h *AskWebSocketHandler) send(conn *websocket.Conn, msg AskMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
