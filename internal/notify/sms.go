package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wedhub/internal/logging"
)

const mobizonURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

// MobizonClient sends SMS through the Mobizon HTTP API.
type MobizonClient struct {
	APIKey  string
	Sender  string // опционально
	DryRun  bool
	BaseURL string
	HTTP    *http.Client
}

type SendSMSResponse struct {
	Code int `json:"code"`
	Data struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
	Message string `json:"message"`
}

func NewMobizonClient(apiKey, sender string, dryRun bool) *MobizonClient {
	return &MobizonClient{
		APIKey:  apiKey,
		Sender:  sender,
		DryRun:  dryRun,
		BaseURL: mobizonURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *MobizonClient) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if c.DryRun || c.APIKey == "" || c.APIKey == "dry-run" {
		logging.Logger.Infof("[sms][dry-run] to=%s sender=%q text=%q", to, c.Sender, text)
		return &SendSMSResponse{Code: 0}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {strings.TrimPrefix(to, "+")},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	logging.Logger.Debugf("[sms] to=%s http_status=%d body=%s", to, resp.StatusCode, body)

	var result SendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse sms response: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("mobizon returned error code %d: %s", result.Code, result.Message)
	}
	return &result, nil
}
