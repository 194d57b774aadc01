package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// MailerService is a thin proxy to the transactional email provider.
// Sending is advisory: the accept flow never waits on it.
type MailerService struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	from       string
	fromName   string
	log        zerolog.Logger
}

func NewMailerService(apiKey, apiURL, from, fromName string, logger zerolog.Logger) *MailerService {
	return &MailerService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		from:       from,
		fromName:   fromName,
		log:        logger,
	}
}

func (s *MailerService) IsAvailable() bool {
	return s.apiKey != ""
}

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type mailResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SendHeroCard mails the recipient a link to their printable hero card.
func (s *MailerService) SendHeroCard(ctx context.Context, to, heroName, cardLink string) error {
	if !s.IsAvailable() {
		return fmt.Errorf("mail delivery is not configured")
	}

	html := fmt.Sprintf(
		`<p>Gratulerer! Du er %s.</p><p><a href="%s">Se og skriv ut heltekortet ditt</a></p>`,
		heroName, cardLink,
	)

	reqBody := mailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.from),
		To:      []string{to},
		Subject: "Heltekortet ditt er klart!",
		HTML:    html,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: string(data)}
	}

	var mailResp mailResponse
	if err := json.Unmarshal(data, &mailResp); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if mailResp.Error != nil {
		return fmt.Errorf("mail provider: %s", mailResp.Error.Message)
	}

	s.log.Debug().Str("mail_id", mailResp.ID).Msg("hero card mail queued")
	return nil
}
