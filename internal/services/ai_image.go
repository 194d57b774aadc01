package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	pollMaxAttempts    = 12
	pollBaseDelay      = 2000 * time.Millisecond
	pollMaxDelay       = 5000 * time.Millisecond
	rateLimitRetryWait = 10 * time.Second
	deleteBaseDelay    = 2 * time.Second
)

// Image asset kinds accepted by DeleteImage.
const (
	ImageKindInitial   = "initial"
	ImageKindGenerated = "generated"
)

type AIImageService struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
	style      string
	log        zerolog.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAIImageService(apiKey, apiURL, model, style string, logger zerolog.Logger) *AIImageService {
	return &AIImageService{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
		style:      style,
		log:        logger,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *AIImageService) IsAvailable() bool {
	return s.apiKey != ""
}

// GenerationParams describe one image job. InitImageID conditions the
// generation on a previously uploaded photo when non-empty.
type GenerationParams struct {
	Personality string
	Gender      string
	Color       string
	InitImageID string
}

type initUploadResponse struct {
	UploadInitImage struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Fields string `json:"fields"`
	} `json:"uploadInitImage"`
}

type generationJobResponse struct {
	Job struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type generationStatusResponse struct {
	Generation struct {
		Status string `json:"status"`
		Images []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// UploadImage pushes a base64 data-URL photo to the provider and
// returns the asset id to condition generation on.
func (s *AIImageService) UploadImage(ctx context.Context, base64Photo string) (string, error) {
	payload, extension, err := decodeDataURL(base64Photo)
	if err != nil {
		return "", err
	}

	slotBody, err := json.Marshal(map[string]string{"extension": extension})
	if err != nil {
		return "", fmt.Errorf("marshal upload request: %w", err)
	}

	resp, err := s.doRequest(ctx, http.MethodPost, s.apiURL+"/init-image", slotBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload slot response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Message: string(body)}
	}

	var slot initUploadResponse
	if err := json.Unmarshal(body, &slot); err != nil {
		return "", fmt.Errorf("parse upload slot response: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(slot.UploadInitImage.Fields), &fields); err != nil {
		return "", fmt.Errorf("parse upload fields: %w", err)
	}

	if err := s.postMultipart(ctx, slot.UploadInitImage.URL, fields, payload, "photo."+extension); err != nil {
		return "", err
	}

	return slot.UploadInitImage.ID, nil
}

func (s *AIImageService) postMultipart(ctx context.Context, destination string, fields map[string]string, payload []byte, filename string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, &buf)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// GenerateImage submits a generation job and returns its id. A 429 is
// retried after a fixed wait up to maxRetries times; past that the
// caller gets a RateLimitError to surface to the user.
func (s *AIImageService) GenerateImage(ctx context.Context, params GenerationParams, maxRetries int) (string, error) {
	request := map[string]any{
		"modelId":     s.model,
		"presetStyle": s.style,
		"prompt":      buildImagePrompt(params),
		"num_images":  1,
		"width":       768,
		"height":      1024,
	}
	if params.InitImageID != "" {
		request["init_image_id"] = params.InitImageID
		request["init_strength"] = 0.35
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		resp, err := s.doRequest(ctx, http.MethodPost, s.apiURL+"/generations", body)
		if err != nil {
			return "", err
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("read generation response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= maxRetries {
				return "", &RateLimitError{RetryAfter: rateLimitRetryWait}
			}
			s.log.Warn().Int("attempt", attempt+1).Msg("image provider rate limited, waiting before retry")
			if err := s.sleep(ctx, rateLimitRetryWait); err != nil {
				return "", err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", &APIError{Status: resp.StatusCode, Message: string(respBody)}
		}

		var job generationJobResponse
		if err := json.Unmarshal(respBody, &job); err != nil {
			return "", fmt.Errorf("parse generation response: %w", err)
		}
		if job.Job.GenerationID == "" {
			return "", &APIError{Status: resp.StatusCode, Message: "missing generation id"}
		}
		return job.Job.GenerationID, nil
	}
}

// GetGeneratedImage polls the job until it completes and returns the
// first generated image URL. Polling stops after pollMaxAttempts with a
// gateway-timeout class error.
func (s *AIImageService) GetGeneratedImage(ctx context.Context, jobID string) (string, error) {
	for attempt := 0; attempt < pollMaxAttempts; attempt++ {
		delay := pollBaseDelay
		for i := 0; i < attempt; i++ {
			delay = delay * 3 / 2
			if delay >= pollMaxDelay {
				delay = pollMaxDelay
				break
			}
		}
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}

		resp, err := s.doRequest(ctx, http.MethodGet, s.apiURL+"/generations/"+jobID, nil)
		if err != nil {
			return "", err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("read poll response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", &APIError{Status: resp.StatusCode, Message: string(body)}
		}

		var status generationStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return "", fmt.Errorf("parse poll response: %w", err)
		}

		switch status.Generation.Status {
		case "COMPLETE":
			if len(status.Generation.Images) == 0 {
				return "", &APIError{Status: http.StatusBadGateway, Message: "generation completed without images"}
			}
			return status.Generation.Images[0].URL, nil
		case "FAILED":
			return "", &APIError{Status: http.StatusBadGateway, Message: "generation failed"}
		}
	}

	return "", &APIError{Status: http.StatusGatewayTimeout, Message: "generation did not complete in time"}
}

// DeleteImage removes an uploaded or generated asset. Deletion is
// advisory: a 404 counts as success, 429s are retried with exponential
// backoff, and exhausting retries yields false rather than an error.
func (s *AIImageService) DeleteImage(ctx context.Context, assetID, kind string, maxRetries int) bool {
	path := "/generations/"
	if kind == ImageKindInitial {
		path = "/init-image/"
	}

	delay := deleteBaseDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := s.doRequest(ctx, http.MethodDelete, s.apiURL+path+assetID, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("asset", assetID).Msg("image delete request failed")
			return false
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return true
		case resp.StatusCode == http.StatusNotFound:
			// Already gone.
			return true
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt == maxRetries {
				s.log.Warn().Str("asset", assetID).Msg("image delete gave up after rate limiting")
				return false
			}
			if err := s.sleep(ctx, delay); err != nil {
				return false
			}
			delay *= 2
		default:
			s.log.Warn().Int("status", resp.StatusCode).Str("asset", assetID).Msg("image delete rejected")
			return false
		}
	}
	return false
}

// cdnBase is where the provider serves finished images from.
const cdnBase = "https://cdn.leonardo.ai/generated_images"

// ImageURL builds the public CDN address for a generated image id.
func (s *AIImageService) ImageURL(imageID string) string {
	return fmt.Sprintf("%s/%s.jpg", cdnBase, imageID)
}

// FetchImage streams the image bytes through the backend. Used by the
// development proxy so local frontends avoid CDN CORS restrictions.
func (s *AIImageService) FetchImage(ctx context.Context, imageID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ImageURL(imageID), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &APIError{Status: resp.StatusCode, Message: "image not available"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func (s *AIImageService) doRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	return resp, nil
}

func buildImagePrompt(params GenerationParams) string {
	subject := params.Gender
	if subject == "robot" {
		subject = "friendly robot"
	}
	return fmt.Sprintf(
		"Comic book style portrait of a %s superhero, %s personality, %s themed costume, dynamic pose, bold colors, clean background",
		subject, params.Personality, params.Color,
	)
}

// splitDataURL validates the photo data-URL envelope and returns the
// MIME type and the raw base64 payload. Only JPEG and PNG pass.
func splitDataURL(dataURL string) (mime, encoded string, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "", "", &ValidationError{Message: "photo must be a base64 data URL"}
	}
	rest := dataURL[len(prefix):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", "", &ValidationError{Message: "photo must be base64 encoded"}
	}
	mime = rest[:sep]
	if mime != "image/jpeg" && mime != "image/png" {
		return "", "", &ValidationError{Message: "photo must be a JPEG or PNG image"}
	}
	return mime, rest[sep+len(";base64,"):], nil
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	mime, encoded, err := splitDataURL(dataURL)
	if err != nil {
		return nil, "", err
	}

	extension := "jpg"
	if mime == "image/png" {
		extension = "png"
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", &ValidationError{Message: "photo is not valid base64"}
	}
	return payload, extension, nil
}
