package recordings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bodycam/backend/internal/livekit"
)

const maxWebhookBody = 1 << 20

// SignatureVerifier authenticates a callback request and returns its body.
type SignatureVerifier interface {
	Verify(r *http.Request) ([]byte, error)
}

// WebhookHandler receives egress callbacks from the provider.
type WebhookHandler struct {
	verifier SignatureVerifier
	service  *Service
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(verifier SignatureVerifier, service *Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{verifier: verifier, service: service, logger: logger}
}

// Handle handles POST /webhooks/livekit. The signature is checked before the body is
// parsed. Once it passes the reply is always 200 "ok", whatever happens to the update.
func (h *WebhookHandler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := h.verifier.Verify(c.Request)
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		c.String(http.StatusUnauthorized, "invalid signature")
		return
	}
	ev, err := livekit.ParseEvent(body)
	if err != nil {
		h.logger.Warn("webhook body dropped", zap.Error(err))
		c.String(http.StatusOK, "ok")
		return
	}
	jobID := ev.GetEgressInfo().GetEgressId()
	h.logger.Info("webhook received", zap.String("event", ev.GetEvent()), zap.String("job_id", jobID))
	if err := h.service.Reconcile(c.Request.Context(), ev); err != nil {
		h.logger.Error("webhook reconcile not durable", zap.String("job_id", jobID), zap.Error(err))
	}
	c.String(http.StatusOK, "ok")
}
