package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/payrelay/internal/payment/format"
)

const (
	fastMessageName    = "fastmessage"
	fastMessageSuccess = 200
	maxErrorBody       = 512
)

type Config struct {
	URL       string
	APIKey    string
	PartnerID string
	AppKey    string
	AppToken  string
	ShortCode string
	Timeout   time.Duration
}

// RejectedError is returned when the gateway answered but refused the
// message.
type RejectedError struct {
	StatusCode   int
	ResponseCode int
	Description  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("sms rejected (status %d, code %d): %s", e.StatusCode, e.ResponseCode, e.Description)
}

func (e *RejectedError) Rejected() bool { return true }

type fastMessageRequest struct {
	APIKey    string `json:"apikey,omitempty"`
	PartnerID string `json:"partnerID,omitempty"`
	AppKey    string `json:"appkey,omitempty"`
	AppToken  string `json:"apptoken,omitempty"`
	Message   string `json:"message"`
	ShortCode string `json:"shortcode"`
	Mobile    string `json:"mobile"`
}

type fastMessageResponse struct {
	Responses []struct {
		ResponseCode        any    `json:"response-code"`
		ResponseDescription string `json:"response-description"`
	} `json:"responses"`
}

// FastMessageProvider posts to the Fast Message bulk SMS API. API key plus
// partner id credentials win over app key plus app token.
type FastMessageProvider struct {
	cfg    Config
	client *http.Client
}

func NewFastMessage(cfg Config) *FastMessageProvider {
	return &FastMessageProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient replaces the transport, for tests.
func (p *FastMessageProvider) WithHTTPClient(client *http.Client) *FastMessageProvider {
	p.client = client
	return p
}

func (p *FastMessageProvider) Name() string { return fastMessageName }

func (p *FastMessageProvider) Configured() bool {
	return p.useAPIKey() || p.useAppToken()
}

func (p *FastMessageProvider) Send(ctx context.Context, phone string, message string) error {
	if !p.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	mobile := format.NormalizePhone(phone)
	if mobile == "" {
		return ErrInvalidPhone
	}

	payload := fastMessageRequest{
		Message:   message,
		ShortCode: p.cfg.ShortCode,
		Mobile:    mobile,
	}
	if p.useAPIKey() {
		payload.APIKey = p.cfg.APIKey
		payload.PartnerID = p.cfg.PartnerID
	} else {
		payload.AppKey = p.cfg.AppKey
		payload.AppToken = p.cfg.AppToken
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &RejectedError{StatusCode: resp.StatusCode, Description: truncate(string(raw))}
	}

	var decoded fastMessageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if len(decoded.Responses) == 0 {
		return &RejectedError{StatusCode: resp.StatusCode, Description: "empty responses"}
	}
	first := decoded.Responses[0]
	code := responseCode(first.ResponseCode)
	if code != fastMessageSuccess {
		return &RejectedError{
			StatusCode:   resp.StatusCode,
			ResponseCode: code,
			Description:  first.ResponseDescription,
		}
	}
	return nil
}

func (p *FastMessageProvider) useAPIKey() bool {
	return p.cfg.APIKey != "" && p.cfg.PartnerID != ""
}

func (p *FastMessageProvider) useAppToken() bool {
	return p.cfg.AppKey != "" && p.cfg.AppToken != ""
}

// responseCode accepts the code as a JSON number or a numeric string.
func responseCode(v any) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

var (
	_ Provider = (*FastMessageProvider)(nil)
	_ Provider = (*NoOpProvider)(nil)
)
