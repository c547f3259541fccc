package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message は WhatsApp キャンペーン API へ送る1通分。
type Message struct {
	CampaignName   string   `json:"campaignName"`
	Destination    string   `json:"destination"`
	UserName       string   `json:"userName"`
	TemplateParams []string `json:"templateParams"`
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// AiSensySender は AiSensy の sendCampaign API を呼ぶ。
type AiSensySender struct {
	url    string
	apiKey string
	client *http.Client
}

func NewAiSensySender(url, apiKey string, client *http.Client) *AiSensySender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AiSensySender{url: url, apiKey: apiKey, client: client}
}

func (s *AiSensySender) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	var out struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode/100 != 2 || out.Status != "success" {
		return fmt.Errorf("campaign api: http %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return nil
}

// LogSender は API キー未設定時に使う。送らずにログだけ残す。
type LogSender struct{ logger *slog.Logger }

func NewLogSender(logger *slog.Logger) *LogSender { return &LogSender{logger: logger} }

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.InfoContext(ctx, "reminder not sent (api key not configured)",
		slog.String("campaign", m.CampaignName),
		slog.String("destination", m.Destination),
		slog.String("user", m.UserName),
		slog.Any("params", m.TemplateParams),
	)
	return nil
}
