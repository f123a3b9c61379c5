package email

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
)

// Handler exposes the email trigger and config listing endpoints.
type Handler struct {
	notifier *Notifier
	routing  *Routing
	logger   *zap.Logger
}

// NewHandler creates an email handler
func NewHandler(notifier *Notifier, routing *Routing, logger *zap.Logger) *Handler {
	return &Handler{
		notifier: notifier,
		routing:  routing,
		logger:   logger,
	}
}

// errorResponse mirrors the error body shape of the HTTP boundary.
type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// SendRequirementConfirmation handles POST /email/send-requirement-confirmation
func (h *Handler) SendRequirementConfirmation(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
			Error:      "Bad Request",
		})
		return
	}

	h.logger.Info("email send request received",
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("story_name", req.StoryName))

	result, err := h.notifier.SendRequirementConfirmation(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("email send request failed",
			zap.String("workspace_id", req.WorkspaceID),
			zap.String("story_name", req.StoryName),
			zap.Error(err))

		switch apperrors.KindOf(err) {
		case apperrors.KindNotFound:
			c.JSON(http.StatusNotFound, errorResponse{
				StatusCode: http.StatusNotFound,
				Message:    err.Error(),
				Error:      "Not Found",
			})
		case apperrors.KindValidation:
			c.JSON(http.StatusBadRequest, errorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    err.Error(),
				Error:      "Bad Request",
			})
		default:
			c.JSON(http.StatusInternalServerError, errorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    err.Error(),
				Error:      "Internal Server Error",
			})
		}
		return
	}

	h.logger.Info("email send request completed",
		zap.String("message_id", result.MessageID),
		zap.String("recipient", result.Recipient))

	c.JSON(http.StatusOK, result)
}

// ListProjectConfigs handles GET /email/project-configs
func (h *Handler) ListProjectConfigs(c *gin.Context) {
	c.JSON(http.StatusOK, h.routing.All())
}
