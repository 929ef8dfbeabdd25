package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/vovakirdan/lobby-server/internal/core"
	"github.com/vovakirdan/lobby-server/internal/proto"
)

const qrSize = 320

// SessionHandlers provides read-only HTTP endpoints over live sessions.
type SessionHandlers struct {
	coord     *core.Coordinator
	publicURL string
	log       *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance.
func NewSessionHandlers(coord *core.Coordinator, publicURL string, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		coord:     coord,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// GetSession returns the current snapshot of a session.
// GET /api/sessions/:code
func (h *SessionHandlers) GetSession(c *gin.Context) {
	sess, err := h.coord.LookupSession(c.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session code", Code: core.ErrCodeInvalidCode})
		case errors.Is(err, core.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: core.ErrCodeSessionNotFound})
		default:
			h.log.Error().Err(err).Msg("failed to look up session")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		}
		return
	}
	c.JSON(http.StatusOK, sessionToProto(sess))
}

// CheckExists reports whether the code refers to a live session.
// GET /api/sessions/:code/exists
func (h *SessionHandlers) CheckExists(c *gin.Context) {
	c.JSON(http.StatusOK, proto.SessionExists{Exists: h.coord.SessionExists(c.Param("code"))})
}

// QRCode renders a PNG QR code pointing at the share URL of a live session.
// GET /api/sessions/:code/qr
func (h *SessionHandlers) QRCode(c *gin.Context) {
	code, err := core.NormalizeCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session code", Code: core.ErrCodeInvalidCode})
		return
	}
	if !h.coord.SessionExists(code) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: core.ErrCodeSessionNotFound})
		return
	}

	png, err := qrcode.Encode(h.shareURL(c.Request, code), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("qr generation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "qr generation failed", Code: core.ErrCodeInternal})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// shareURL is the address a client opens to join code.
func (h *SessionHandlers) shareURL(r *http.Request, code string) string {
	if h.publicURL != "" {
		return h.publicURL + "/" + code
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + "/" + code
}
