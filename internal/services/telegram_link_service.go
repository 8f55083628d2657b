package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"wedhub/internal/authz"
	"wedhub/internal/logging"
	"wedhub/internal/models"
	"wedhub/internal/utils"
)

const telegramLinkTTL = 30 * time.Minute

// TelegramLinkService binds a vendor's Telegram chat through a one-time code
// the vendor owner sends to the bot.
type TelegramLinkService struct {
	Links   TelegramLinkStore
	Vendors VendorStore
	Bot     ChatMessenger
	Clock   func() time.Time
}

func NewTelegramLinkService(links TelegramLinkStore, vendors VendorStore, bot ChatMessenger) *TelegramLinkService {
	return &TelegramLinkService{Links: links, Vendors: vendors, Bot: bot, Clock: time.Now}
}

func (s *TelegramLinkService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// RequestLink issues a 32-char hex code for the vendor the actor owns.
// Admins may issue codes for any vendor.
func (s *TelegramLinkService) RequestLink(ctx context.Context, actor authz.Actor, vendorID uuid.UUID) (*models.TelegramLink, error) {
	vendor, err := s.Vendors.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return nil, fmt.Errorf("%w: vendor not found", utils.ErrNotFound)
	}
	if vendor.OwnerID != actor.UserID && !authz.IsAdmin(actor.Role) {
		return nil, fmt.Errorf("%w: only the vendor owner can link Telegram", utils.ErrForbidden)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate link code: %w", err)
	}
	now := s.now()
	link := &models.TelegramLink{
		ID:        uuid.New(),
		VendorID:  vendor.ID,
		Code:      strings.ToUpper(hex.EncodeToString(buf)),
		ExpiresAt: now.Add(telegramLinkTTL),
		CreatedAt: now,
	}
	if err := s.Links.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	logging.Logger.Infof("[tg][link] issued vendor=%s expires_at=%s", vendor.ID, link.ExpiresAt.Format(time.RFC3339))
	return link, nil
}

// NormalizeLinkCode strips quotes and separators users tend to paste along
// with the code.
func NormalizeLinkCode(s string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if unicode.Is(unicode.Hex_Digit, r) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) != 32 {
		return "", false
	}
	return code, true
}

// HandleMessage reacts to a bot message: "/start <code>" or "/link <code>"
// binds the chat, anything else gets a short usage hint.
func (s *TelegramLinkService) HandleMessage(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	var raw string
	switch {
	case strings.HasPrefix(text, "/link"):
		raw = strings.TrimPrefix(text, "/link")
	case strings.HasPrefix(text, "/start"):
		raw = strings.TrimPrefix(text, "/start")
		if strings.TrimSpace(raw) == "" {
			return s.reply(chatID, "Hi! To receive payment receipt alerts send:\n<code>/link &lt;code&gt;</code>\nGet the code in your vendor dashboard.")
		}
	default:
		return s.reply(chatID, "Unknown command. Use <code>/link &lt;code&gt;</code>.")
	}

	code, ok := NormalizeLinkCode(raw)
	if !ok {
		logging.Logger.Infof("[tg][link] bad code format chat=%d", chatID)
		return s.reply(chatID, "Invalid code format. Send exactly 32 hex characters:\n<code>/link 0123456789ABCDEF0123456789ABCDEF</code>")
	}
	link, err := s.Links.ConsumeLink(ctx, code, chatID, s.now())
	if err != nil {
		_ = s.reply(chatID, "Could not link the chat, please try again later.")
		return err
	}
	if link == nil {
		return s.reply(chatID, "The code is invalid or expired. Generate a new one in your dashboard.")
	}
	logging.Logger.Infof("[tg][link] vendor=%s chat=%d linked", link.VendorID, chatID)
	return s.reply(chatID, "Done! New payment receipts will be posted here.")
}

func (s *TelegramLinkService) reply(chatID int64, text string) error {
	if s.Bot == nil {
		return nil
	}
	return s.Bot.SendMessage(chatID, text)
}
