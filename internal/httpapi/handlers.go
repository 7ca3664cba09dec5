package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"outbound-caller/internal/calls"
	"outbound-caller/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Placer is the call orchestration the handlers depend on.
type Placer interface {
	PlaceCall(ctx context.Context, req calls.CallRequest) (calls.CallResult, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls   Placer
	Records calls.Repository
	Now     func() time.Time
}

type outboundCallRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	// Pointers so that an explicit "" passes "required".
	CallerName *string `json:"caller_name" binding:"required"`
	AgentName  *string `json:"agent_name" binding:"required"`
	// Kept raw so the agent receives the caller's numbers digit for digit.
	AgentMetadata json.RawMessage `json:"agent_metadata"`
}

// metadataObject returns raw when it is a JSON object, nil for absent or null.
func metadataObject(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return nil, nil
	case trimmed[0] == '{':
		return trimmed, nil
	default:
		return nil, errors.New("agent_metadata must be an object or null")
	}
}

type outboundCallResponse struct {
	RoomName       string `json:"room_name"`
	ParticipantSID string `json:"participant_sid"`
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PlaceOutboundCall answers only after the callee picks up or the dial gives up.
func (h Handlers) PlaceOutboundCall(c *gin.Context) {
	log := logger.From(c.Request.Context())
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
		return
	}

	var body outboundCallRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	metadata, err := metadataObject(body.AgentMetadata)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	req := calls.CallRequest{
		PhoneNumber:   body.PhoneNumber,
		CallerName:    *body.CallerName,
		AgentName:     *body.AgentName,
		AgentMetadata: metadata,
	}
	res, err := h.Calls.PlaceCall(c.Request.Context(), req)
	h.record(c.Request.Context(), req, res, err)

	if err != nil {
		var ve *calls.ValidationError
		if errors.As(err, &ve) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": ve.Error()})
			return
		}
		log.Error("outbound call failed", "phone_number", req.PhoneNumber, "agent_name", req.AgentName, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
		return
	}

	c.JSON(http.StatusCreated, outboundCallResponse{
		RoomName:       res.RoomName,
		ParticipantSID: res.Participant.GetParticipantId(),
	})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Records == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found"})
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), c.Param("room_name"))
	if errors.Is(err, calls.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found"})
		return
	}
	if err != nil {
		logger.From(c.Request.Context()).Error("call record lookup failed", "room_name", c.Param("room_name"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// record is best-effort: a storage failure never changes the response.
func (h Handlers) record(ctx context.Context, req calls.CallRequest, res calls.CallResult, callErr error) {
	if h.Records == nil {
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	rec, ok := calls.NewRecord(req, res, callErr, now())
	if !ok {
		return
	}
	if err := h.Records.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.From(ctx).Warn("call record save failed", "room_name", rec.RoomName, "err", err)
	}
}
