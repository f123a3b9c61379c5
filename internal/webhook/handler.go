package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the TAPD webhook endpoint.
type Handler struct {
	processor *Processor
	secret    string
	logger    *zap.Logger
}

// NewHandler creates a webhook handler
func NewHandler(processor *Processor, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		processor: processor,
		secret:    secret,
		logger:    logger,
	}
}

// Response is the uniform webhook response envelope. The endpoint always
// answers HTTP 200; failure is carried in the body so TAPD does not spin
// up delivery retries.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handle processes POST /webhook/tapd
func (h *Handler) Handle(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("failed to parse webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, Response{
			Success: false,
			Message: "Webhook处理失败",
			Error:   "invalid payload: " + err.Error(),
		})
		return
	}

	h.logger.Info("TAPD webhook received",
		zap.String("event_key", payload.Event.EventKey),
		zap.String("object_type", payload.Event.ObjectType),
		zap.String("object_id", payload.Event.ObjectID),
		zap.String("workspace_id", payload.WorkspaceID),
		zap.String("user", payload.Event.User))

	if err := h.verifySignature(c.Request.Header, &payload); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusOK, Response{
			Success: false,
			Message: "Webhook处理失败",
			Error:   err.Error(),
		})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), &payload)
	if err != nil {
		h.logger.Error("webhook processing failed",
			zap.Error(err),
			zap.String("event_key", payload.Event.EventKey))
		c.JSON(http.StatusOK, Response{
			Success: false,
			Message: "Webhook处理失败",
			Error:   err.Error(),
		})
		return
	}

	h.logger.Info("webhook processed", zap.String("message", result.Message))

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Webhook处理成功",
		Data:    result,
	})
}

// verifySignature is a stub. TAPD webhook signing is not enabled for this
// workspace; when it is, validate the X-Tapd-Signature header against
// h.secret here.
func (h *Handler) verifySignature(_ http.Header, _ *Payload) error {
	return nil
}
