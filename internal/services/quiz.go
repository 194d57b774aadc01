package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

type Phase string

const (
	PhaseQuiz       Phase = "quiz"
	PhaseCamera     Phase = "camera"
	PhaseGenerating Phase = "generating"
	PhasePreview    Phase = "preview"
	PhaseResults    Phase = "results"
)

type GenerationStep string

const (
	StepUpload   GenerationStep = "upload"
	StepProcess  GenerationStep = "process"
	StepGenerate GenerationStep = "generate"
	StepComplete GenerationStep = "complete"
)

const (
	maxUserRetries    = 2
	maxImageAttempts  = 3
	imageAttemptDelay = 2 * time.Second
	mismatchCap       = 2
	pipelineDeadline  = 3 * time.Minute
	photoMaxBytes     = 5 * 1024 * 1024
)

var (
	ErrRunNotFound  = errors.New("quiz run not found")
	ErrWrongPhase   = errors.New("operation not allowed in current phase")
	ErrRetryLimit   = errors.New("retry limit reached")
	ErrAcceptToken  = errors.New("invalid or used accept token")
	ErrNoSession    = errors.New("a session must be selected before accepting")
	ErrGenerating   = errors.New("generation already in progress")
	errColorDrift   = errors.New("color consistency could not be restored")
	genImageIDRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

type nameGenerator interface {
	GenerateName(ctx context.Context, personality string, gender models.Gender, color models.HeroColor) (string, bool, error)
}

type imageGenerator interface {
	UploadImage(ctx context.Context, base64Photo string) (string, error)
	GenerateImage(ctx context.Context, params GenerationParams, maxRetries int) (string, error)
	GetGeneratedImage(ctx context.Context, jobID string) (string, error)
	DeleteImage(ctx context.Context, assetID, kind string, maxRetries int) bool
}

type heroRecorder interface {
	Create(input HeroInput) (*models.Hero, error)
	IncrementStats(color models.HeroColor, sessionID *uint) error
}

type activeSessionLister interface {
	ListActive() ([]models.Session, error)
}

// QuizRun holds the full state of one visitor's journey from
// registration to results. Phase is the discriminant; fields past the
// current phase are zero.
type QuizRun struct {
	ID            string
	User          models.UserData
	SessionID     *uint
	Tally         models.ColorTally
	QuestionIndex int

	Phase Phase
	Step  GenerationStep

	Photo       string
	InitImageID string

	Results          []models.PersonalityResult
	SelectedColor    models.HeroColor
	HeroName         string
	UsedFallbackName bool
	ImageURL         string

	RetryCount  int
	AcceptToken string
	LastError   string

	CreatedAt time.Time

	cancel context.CancelFunc
	epoch  int
}

// QuizService sequences registration, questions, photo capture, hero
// generation and persistence. Runs live in a process-local map; the
// pipeline itself executes on a background goroutine while clients poll
// the run state.
type QuizService struct {
	mu   sync.Mutex
	runs map[string]*QuizRun

	scoring  *ScoringService
	names    nameGenerator
	images   imageGenerator
	heroes   heroRecorder
	sessions activeSessionLister
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	// onAccepted is notified with the persisted hero, e.g. to feed the
	// carousel websocket.
	onAccepted func(hero *models.Hero)
}

func NewQuizService(scoring *ScoringService, names nameGenerator, images imageGenerator, heroes heroRecorder, sessions activeSessionLister, logger zerolog.Logger) *QuizService {
	return &QuizService{
		runs:     make(map[string]*QuizRun),
		scoring:  scoring,
		names:    names,
		images:   images,
		heroes:   heroes,
		sessions: sessions,
		log:      logger,
		sleep:    sleepCtx,
	}
}

// OnAccepted registers a callback invoked after a hero is persisted.
func (s *QuizService) OnAccepted(fn func(hero *models.Hero)) {
	s.onAccepted = fn
}

// Start registers a visitor and opens the question flow.
func (s *QuizService) Start(user models.UserData, sessionID *uint) (*RunView, error) {
	name := strings.TrimSpace(user.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 21 {
		return nil, &ValidationError{Message: "name must be 1-21 characters"}
	}
	if !user.Gender.Valid() {
		return nil, &ValidationError{Message: "gender must be male, female or robot"}
	}

	run := &QuizRun{
		ID:        uuid.NewString(),
		User:      models.UserData{Name: name, Gender: user.Gender},
		SessionID: sessionID,
		Phase:     PhaseQuiz,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	view := run.view()
	s.mu.Unlock()

	return view, nil
}

// Answer records the color of the chosen option and advances the flow.
// After the last question, robot users skip photo capture and go
// straight to generation.
func (s *QuizService) Answer(runID string, color models.HeroColor) (*RunView, error) {
	if !color.Valid() {
		return nil, &ValidationError{Message: "invalid answer color"}
	}

	s.mu.Lock()
	run, ok := s.runs[runID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRunNotFound
	}
	if run.Phase != PhaseQuiz {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}

	if err := run.Tally.Increment(color); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	run.QuestionIndex++

	if run.QuestionIndex < len(quizQuestions) {
		view := run.view()
		s.mu.Unlock()
		return view, nil
	}

	if run.User.Gender == models.GenderRobot {
		s.beginGenerationLocked(run)
		view := run.view()
		s.mu.Unlock()
		return view, nil
	}

	run.Phase = PhaseCamera
	view := run.view()
	s.mu.Unlock()
	return view, nil
}

// SubmitPhoto stores the captured photo (or none) and launches the
// generation pipeline. A submit while generation is already running is
// refused, which also guards against double-clicks.
func (s *QuizService) SubmitPhoto(runID, photo string) (*RunView, error) {
	if photo != "" {
		if err := validatePhoto(photo); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.Phase == PhaseGenerating {
		return nil, ErrGenerating
	}
	if run.Phase != PhaseCamera {
		return nil, ErrWrongPhase
	}

	run.Photo = photo
	run.InitImageID = ""
	s.beginGenerationLocked(run)
	return run.view(), nil
}

// beginGenerationLocked flips the run into the generating phase and
// starts the pipeline goroutine. Caller holds s.mu.
func (s *QuizService) beginGenerationLocked(run *QuizRun) {
	ctx, cancel := context.WithTimeout(context.Background(), pipelineDeadline)
	run.cancel = cancel
	run.epoch++
	run.Phase = PhaseGenerating
	run.Step = StepUpload
	run.LastError = ""
	run.HeroName = ""
	run.ImageURL = ""
	run.AcceptToken = ""

	epoch := run.epoch
	go func() {
		defer cancel()
		s.runPipeline(ctx, run.ID, epoch)
	}()
}

// runPipeline executes one full generation attempt: personality
// computation, optional photo upload, name generation, image generation
// with a bounded outer retry, and the color consistency check with a
// bounded recompute.
func (s *QuizService) runPipeline(ctx context.Context, runID string, epoch int) {
	for mismatches := 0; ; mismatches++ {
		err := s.generateOnce(ctx, runID, epoch)
		if err == nil {
			return
		}
		if errors.Is(err, errColorDrift) && mismatches < mismatchCap {
			s.log.Warn().Str("run", runID).Int("recompute", mismatches+1).Msg("rerunning generation after color mismatch")
			continue
		}
		s.failRun(runID, epoch, err)
		return
	}
}

func (s *QuizService) generateOnce(ctx context.Context, runID string, epoch int) error {
	s.mu.Lock()
	run, ok := s.runs[runID]
	if !ok || run.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	run.Step = StepUpload
	photo := run.Photo
	initImageID := run.InitImageID
	gender := run.User.Gender
	tally := run.Tally
	s.mu.Unlock()

	results := s.scoring.CalculateResults(tally)
	selected := results[0]

	if photo != "" && initImageID == "" {
		id, err := s.images.UploadImage(ctx, photo)
		if err != nil {
			return err
		}
		initImageID = id
		s.withRun(runID, epoch, func(run *QuizRun) {
			run.InitImageID = id
		})
	}

	s.withRun(runID, epoch, func(run *QuizRun) {
		run.Step = StepProcess
	})

	nameColor := selected.Color
	heroName, usedFallback, err := s.names.GenerateName(ctx, selected.Name, gender, nameColor)
	if err != nil {
		return err
	}

	s.withRun(runID, epoch, func(run *QuizRun) {
		run.Step = StepGenerate
	})

	imageParams := GenerationParams{
		Personality: selected.Name,
		Gender:      string(gender),
		Color:       string(selected.Color),
		InitImageID: initImageID,
	}
	imageURL, err := s.generateImageWithRetry(ctx, imageParams)
	if err != nil {
		return err
	}

	// Name and image were both requested with the dominant color, so a
	// disagreement here means a bug upstream. Recompute a bounded
	// number of times rather than recursing forever.
	imageColor := models.HeroColor(imageParams.Color)
	if !ValidateColorConsistency(selected.Color, nameColor, imageColor) {
		s.scoring.LogMismatch(selected.Color, GetConsistentColor(nameColor, imageColor))
		return errColorDrift
	}

	s.withRun(runID, epoch, func(run *QuizRun) {
		run.Results = results
		run.SelectedColor = selected.Color
		run.HeroName = heroName
		run.UsedFallbackName = usedFallback
		run.ImageURL = imageURL
		run.Step = StepComplete
		run.Phase = PhasePreview
		run.AcceptToken = uuid.NewString()
	})
	return nil
}

// generateImageWithRetry wraps the provider call in the outer retry
// layer: a fixed delay between attempts, distinct from the client's own
// 429 handling. Rate limiting is not retried here; the user has to be
// told to wait.
func (s *QuizService) generateImageWithRetry(ctx context.Context, params GenerationParams) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxImageAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, imageAttemptDelay); err != nil {
				return "", err
			}
		}

		jobID, err := s.images.GenerateImage(ctx, params, 1)
		if err == nil {
			var url string
			url, err = s.images.GetGeneratedImage(ctx, jobID)
			if err == nil {
				return url, nil
			}
		}
		if IsRateLimit(err) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("image generation attempt failed")
	}
	return "", lastErr
}

func (s *QuizService) failRun(runID string, epoch int, err error) {
	message := "Noe gikk galt under generering av helten din. Prøv igjen."
	var rl *RateLimitError
	var ve *ValidationError
	switch {
	case errors.As(err, &rl):
		message = fmt.Sprintf("Tjenesten er opptatt. Vent %d sekunder og prøv igjen.", int(rl.RetryAfter.Seconds()))
	case errors.As(err, &ve):
		message = ve.Message
	}

	s.log.Error().Err(err).Str("run", runID).Msg("generation pipeline failed")

	s.withRun(runID, epoch, func(run *QuizRun) {
		run.Phase = PhaseCamera
		run.Step = StepUpload
		run.HeroName = ""
		run.ImageURL = ""
		run.LastError = message
	})
}

// withRun applies fn to the run under lock, skipping stale epochs so an
// abandoned pipeline cannot clobber newer state.
func (s *QuizService) withRun(runID string, epoch int, fn func(run *QuizRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok || run.epoch != epoch {
		return
	}
	fn(run)
}

// AcceptResult reports what happened at accept time. Persistence
// problems surface as a warning while the results are shown anyway.
type AcceptResult struct {
	View    *RunView
	Hero    *models.Hero
	Warning string
}

// Accept persists the previewed hero. Requires a selected session
// whenever at least one session is currently active. The stats counter
// and the hero row are written concurrently; a duplicate image id
// counts as success.
func (s *QuizService) Accept(runID, token string) (*AcceptResult, error) {
	s.mu.Lock()
	run, ok := s.runs[runID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRunNotFound
	}
	if run.Phase != PhasePreview {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	if token == "" || token != run.AcceptToken {
		s.mu.Unlock()
		return nil, ErrAcceptToken
	}
	// One-shot: a concurrent second accept loses the token race.
	run.AcceptToken = ""
	epoch := run.epoch
	sessionID := run.SessionID
	selected := run.SelectedColor
	heroName := run.HeroName
	userName := run.User.Name
	gender := run.User.Gender
	tally := run.Tally
	results := run.Results
	imageURL := run.ImageURL
	s.mu.Unlock()

	active, err := s.sessions.ListActive()
	if err != nil {
		s.log.Error().Err(err).Msg("could not list active sessions at accept")
	}
	if len(active) > 0 && sessionID == nil {
		s.withRun(runID, epoch, func(run *QuizRun) {
			run.AcceptToken = token
		})
		return nil, ErrNoSession
	}

	result := &AcceptResult{}

	imageID := ExtractImageID(imageURL)
	if imageID == "" {
		// The hero is still shown, it just cannot be persisted.
		s.log.Error().Str("url", imageURL).Msg("could not extract image id from provider url")
		result.Warning = "Helten kunne ikke lagres."
	} else {
		personality := ""
		if len(results) > 0 {
			personality = results[0].Name
		}

		var wg sync.WaitGroup
		var statsErr, createErr error
		var hero *models.Hero

		wg.Add(2)
		go func() {
			defer wg.Done()
			statsErr = s.heroes.IncrementStats(selected, sessionID)
		}()
		go func() {
			defer wg.Done()
			hero, createErr = s.heroes.Create(HeroInput{
				Name:            heroName,
				UserName:        userName,
				PersonalityType: personality,
				ImageID:         imageID,
				Color:           selected,
				Gender:          gender,
				ColorScores:     tally,
				SessionID:       sessionID,
			})
		}()
		wg.Wait()

		if errors.Is(createErr, ErrDuplicateImage) {
			// Idempotent accept; the first row stands.
			createErr = nil
		}
		if statsErr != nil || createErr != nil {
			s.log.Error().AnErr("stats", statsErr).AnErr("create", createErr).Msg("persisting accepted hero failed")
			result.Warning = "Helten vises, men kunne ikke lagres."
		}
		result.Hero = hero

		if hero != nil && s.onAccepted != nil {
			s.onAccepted(hero)
		}
	}

	s.mu.Lock()
	if run, ok := s.runs[runID]; ok {
		run.Phase = PhaseResults
		result.View = run.view()
	}
	s.mu.Unlock()

	return result, nil
}

// Retry discards the previewed image and reruns generation with the
// stored photo. Refused once the retry budget is spent; the run state
// stays unchanged in that case.
func (s *QuizService) Retry(runID string) (*RunView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.Phase != PhasePreview {
		return nil, ErrWrongPhase
	}
	if run.RetryCount >= maxUserRetries {
		return nil, ErrRetryLimit
	}

	run.RetryCount++

	if prevID := ExtractImageID(run.ImageURL); prevID != "" {
		// Cleanup is advisory; generation never waits on it.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if !s.images.DeleteImage(ctx, prevID, ImageKindGenerated, 3) {
				s.log.Warn().Str("image", prevID).Msg("discarded image could not be deleted")
			}
		}()
	}

	s.beginGenerationLocked(run)
	return run.view(), nil
}

// Reset abandons the run entirely; any in-flight pipeline is cancelled.
func (s *QuizService) Reset(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.cancel != nil {
		run.cancel()
	}
	delete(s.runs, runID)
	return nil
}

func (s *QuizService) Get(runID string) (*RunView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.view(), nil
}

// RunView is the polling snapshot exposed over the API.
type RunView struct {
	ID               string                     `json:"id"`
	Phase            Phase                      `json:"phase"`
	Step             GenerationStep             `json:"step,omitempty"`
	QuestionIndex    int                        `json:"questionIndex"`
	QuestionCount    int                        `json:"questionCount"`
	UserName         string                     `json:"userName"`
	Gender           models.Gender              `json:"gender"`
	SessionID        *uint                      `json:"sessionId,omitempty"`
	Results          []models.PersonalityResult `json:"results,omitempty"`
	SelectedColor    models.HeroColor           `json:"selectedColor,omitempty"`
	HeroName         string                     `json:"heroName,omitempty"`
	UsedFallbackName bool                       `json:"usedFallbackName,omitempty"`
	ImageURL         string                     `json:"imageUrl,omitempty"`
	RetryCount       int                        `json:"retryCount"`
	RetriesLeft      int                        `json:"retriesLeft"`
	AcceptToken      string                     `json:"acceptToken,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

func (r *QuizRun) view() *RunView {
	view := &RunView{
		ID:               r.ID,
		Phase:            r.Phase,
		QuestionIndex:    r.QuestionIndex,
		QuestionCount:    len(quizQuestions),
		UserName:         r.User.Name,
		Gender:           r.User.Gender,
		SessionID:        r.SessionID,
		SelectedColor:    r.SelectedColor,
		HeroName:         r.HeroName,
		UsedFallbackName: r.UsedFallbackName,
		ImageURL:         r.ImageURL,
		RetryCount:       r.RetryCount,
		RetriesLeft:      maxUserRetries - r.RetryCount,
		AcceptToken:      r.AcceptToken,
		Error:            r.LastError,
	}
	if r.Phase == PhaseGenerating || r.Step == StepComplete {
		view.Step = r.Step
	}
	if len(r.Results) > 0 {
		view.Results = append([]models.PersonalityResult(nil), r.Results...)
	}
	return view
}

// ExtractImageID pulls the provider asset id (a UUID) out of an image
// URL. Empty result means the URL shape was not recognized.
func ExtractImageID(imageURL string) string {
	matches := genImageIDRegex.FindAllString(imageURL, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

// validatePhoto checks the data-URL envelope and the decoded size
// before the payload is held in run state.
func validatePhoto(photo string) error {
	_, encoded, err := splitDataURL(photo)
	if err != nil {
		return err
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > photoMaxBytes {
		return &ValidationError{Message: "photo must be 5MB or smaller"}
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		return &ValidationError{Message: "photo is not valid base64"}
	}
	return nil
}
