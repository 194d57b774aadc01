package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

const maxGeneratedNameLength = 50

// Letters (including Scandinavian diacritics), spaces and light
// punctuation only; keeps arbitrary instructions out of the prompt.
var personalityPattern = regexp.MustCompile(`^[a-zA-ZæøåÆØÅäöüÄÖÜ ,.\-]{1,100}$`)

// defaultHeroNames is the per-color fallback used whenever the provider
// cannot produce a usable name.
var defaultHeroNames = map[models.HeroColor]string{
	models.ColorRed:    "Kaptein Glød",
	models.ColorYellow: "Solstrålen",
	models.ColorGreen:  "Skogvokteren",
	models.ColorBlue:   "Tankemesteren",
}

type HeroNameService struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
	log        zerolog.Logger
}

func NewHeroNameService(apiKey, apiURL, model string, logger zerolog.Logger) *HeroNameService {
	return &HeroNameService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
		log:        logger,
	}
}

func (s *HeroNameService) IsAvailable() bool {
	return s.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const nameSystemPrompt = `Du er en kreativ navngiver for superhelter. Svar med KUN ett heltenavn på norsk, 1-3 ord, uten anførselstegn og uten forklaring. Ikke bruk generiske kjønnsord som "mann", "kvinne", "gutt" eller "jente".`

// GenerateName asks the text provider for a short Norwegian hero name.
// Any failure resolves silently to the per-color default name; the
// second return value tells tests (and curious callers) the fallback
// was used. Only invalid input produces an error.
func (s *HeroNameService) GenerateName(ctx context.Context, personality string, gender models.Gender, color models.HeroColor) (string, bool, error) {
	if !personalityPattern.MatchString(personality) {
		return "", false, &ValidationError{Message: "invalid personality text"}
	}
	if !gender.Valid() || !color.Valid() {
		return "", false, &ValidationError{Message: "invalid gender or color"}
	}

	name, err := s.requestName(ctx, personality, gender, color)
	if err != nil {
		s.log.Warn().Err(err).Str("color", string(color)).Msg("hero name generation failed, using default")
		return defaultHeroNames[color], true, nil
	}
	return name, false, nil
}

func (s *HeroNameService) requestName(ctx context.Context, personality string, gender models.Gender, color models.HeroColor) (string, error) {
	if !s.IsAvailable() {
		return "", fmt.Errorf("name generation is not configured")
	}

	userPrompt := fmt.Sprintf(
		"Lag et heltenavn for en %s superhelt med personligheten %q og fargen %s.",
		gender, personality, color,
	)

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: nameSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}

	name := strings.Trim(strings.TrimSpace(chatResp.Choices[0].Message.Content), `"`)
	if name == "" {
		return "", fmt.Errorf("provider returned an empty name")
	}
	if utf8.RuneCountInString(name) > maxGeneratedNameLength {
		return "", fmt.Errorf("provider returned an oversized name")
	}
	return name, nil
}

// DefaultNames exposes the fallback table for tests and seeding.
func DefaultNames() []string {
	names := make([]string, 0, len(models.AllColors))
	for _, color := range models.AllColors {
		names = append(names, defaultHeroNames[color])
	}
	return names
}
