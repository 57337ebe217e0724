package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"crypto-market-feed/internal/logger"
)

const TelegramBaseURL = "https://api.telegram.org"

// Alerter is told when the feed starts and stops serving the sample dataset.
type Alerter interface {
	FeedDegraded(reason string)
	FeedRecovered(source string)
}

type nopAlerter struct{}

func (nopAlerter) FeedDegraded(string)  {}
func (nopAlerter) FeedRecovered(string) {}

// AlertService sends one Telegram message per degradation and per recovery.
type AlertService struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client

	mu       sync.Mutex
	degraded bool
	sends    sync.WaitGroup
}

func NewAlertService(token, chatID string) *AlertService {
	return &AlertService{
		Token:   token,
		ChatID:  chatID,
		BaseURL: TelegramBaseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *AlertService) Enabled() bool {
	return s.Token != "" && s.ChatID != ""
}

func (s *AlertService) FeedDegraded(reason string) {
	s.mu.Lock()
	if s.degraded {
		s.mu.Unlock()
		return
	}
	s.degraded = true
	s.mu.Unlock()

	now := time.Now().Format("02/01/2006, 15:04:05")
	s.SendMessage(fmt.Sprintf(
		"⚠️ *Market feed degraded*\n\n"+
			"Serving built-in sample data.\n"+
			"Reason: %s\n\n"+
			"📅 %s",
		s.escapeMarkdown(reason), now,
	))
}

func (s *AlertService) FeedRecovered(source string) {
	s.mu.Lock()
	if !s.degraded {
		s.mu.Unlock()
		return
	}
	s.degraded = false
	s.mu.Unlock()

	now := time.Now().Format("02/01/2006, 15:04:05")
	s.SendMessage(fmt.Sprintf(
		"✅ *Market feed recovered*\n\n"+
			"Live data via %s.\n\n"+
			"📅 %s",
		s.escapeMarkdown(source), now,
	))
}

// SendMessage posts asynchronously; failures are only logged.
func (s *AlertService) SendMessage(text string) {
	if !s.Enabled() {
		logger.Debug("Telegram credentials not set, skipping message")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.BaseURL, s.Token)
	payload := map[string]string{
		"chat_id":    s.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal Telegram payload", "error", err)
		return
	}

	s.sends.Add(1)
	go func() {
		defer s.sends.Done()

		resp, err := s.Client.Post(url, "application/json", bytes.NewReader(jsonPayload))
		if err != nil {
			logger.Error("Failed to send Telegram message", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			logger.Error("Telegram API error", "status", resp.Status)
		}
	}()
}

// Wait blocks until in-flight messages finish.
func (s *AlertService) Wait() {
	s.sends.Wait()
}

func (s *AlertService) escapeMarkdown(text string) string {
	return strings.ReplaceAll(text, "_", "\\_")
}
