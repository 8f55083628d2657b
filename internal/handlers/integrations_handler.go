package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wedhub/internal/logging"
	"wedhub/internal/services"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type IntegrationsHandler struct {
	links         *services.TelegramLinkService
	webhookSecret string
}

func NewIntegrationsHandler(links *services.TelegramLinkService, webhookSecret string) *IntegrationsHandler {
	return &IntegrationsHandler{links: links, webhookSecret: webhookSecret}
}

type TelegramLinkResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Hint      string    `json:"hint"`
}

// @Summary      Код привязки Telegram
// @Description  Issues a one-time code; send "/link <code>" to the bot to receive receipt alerts in that chat
// @Tags         Integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  TelegramLinkResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/vendors/{id}/telegram-link [post]
func (h *IntegrationsHandler) RequestTelegramLink(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	vendorID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	link, err := h.links.RequestLink(c.Request.Context(), actor, vendorID)
	if err != nil {
		respondError(c, "integrations.telegram-link", err)
		return
	}
	c.JSON(http.StatusOK, TelegramLinkResponse{
		Code:      link.Code,
		ExpiresAt: link.ExpiresAt,
		Hint:      "Open the bot chat and send: /link " + link.Code,
	})
}

// TelegramWebhook receives bot updates. It always answers 200 so Telegram
// does not redeliver; failures are only logged.
//
// @Summary      Telegram bot webhook
// @Tags         Integrations
// @Produce      json
// @Success      200
// @Failure      401  {object}  ErrorResponse
// @Router       /api/integrations/telegram/webhook [post]
func (h *IntegrationsHandler) TelegramWebhook(c *gin.Context) {
	if h.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(c.GetHeader(telegramSecretHeader)), []byte(h.webhookSecret)) != 1 {
		logging.Logger.Warn("[tg][webhook] bad secret token")
		c.Status(http.StatusUnauthorized)
		return
	}

	var up tgbotapi.Update
	if err := c.ShouldBindJSON(&up); err != nil {
		logging.Logger.Debugf("[tg][webhook] bind json: %v", err)
		c.Status(http.StatusOK)
		return
	}
	if up.Message == nil || up.Message.Chat == nil {
		c.Status(http.StatusOK)
		return
	}
	if err := h.links.HandleMessage(c.Request.Context(), up.Message.Chat.ID, up.Message.Text); err != nil {
		logging.Logger.WithError(err).Warnf("[tg][webhook] chat=%d", up.Message.Chat.ID)
	}
	c.Status(http.StatusOK)
}
