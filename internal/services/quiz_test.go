package services

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

const testImageURL = "https://cdn.example/generations/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee.jpg"

type stubNames struct {
	mu    sync.Mutex
	name  string
	err   error
	block chan struct{}
	calls int
}

func (s *stubNames) GenerateName(ctx context.Context, personality string, gender models.Gender, color models.HeroColor) (string, bool, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if s.err != nil {
		return "", false, s.err
	}
	return s.name, false, nil
}

type stubImages struct {
	mu          sync.Mutex
	uploadID    string
	uploadErr   error
	uploadCalls int
	genErr      error
	genFailures int
	genCalls    int
	url         string
	deleted     []string
}

func (s *stubImages) UploadImage(ctx context.Context, base64Photo string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCalls++
	return s.uploadID, s.uploadErr
}

func (s *stubImages) GenerateImage(ctx context.Context, params GenerationParams, maxRetries int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genCalls++
	if s.genErr != nil && (s.genFailures == 0 || s.genCalls <= s.genFailures) {
		return "", s.genErr
	}
	return "job-1", nil
}

func (s *stubImages) GetGeneratedImage(ctx context.Context, jobID string) (string, error) {
	return s.url, nil
}

func (s *stubImages) DeleteImage(ctx context.Context, assetID, kind string, maxRetries int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, assetID)
	return true
}

type stubHeroes struct {
	mu         sync.Mutex
	created    []HeroInput
	createErr  error
	existing   *models.Hero
	statsErr   error
	statsCalls int
}

func (s *stubHeroes) Create(input HeroInput) (*models.Hero, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, input)
	if s.createErr != nil {
		return s.existing, s.createErr
	}
	return &models.Hero{Name: input.Name, UserName: input.UserName, ImageID: input.ImageID, Color: input.Color}, nil
}

func (s *stubHeroes) IncrementStats(color models.HeroColor, sessionID *uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsCalls++
	return s.statsErr
}

type stubSessions struct {
	active []models.Session
	err    error
}

func (s *stubSessions) ListActive() ([]models.Session, error) {
	return s.active, s.err
}

type quizFixture struct {
	svc      *QuizService
	names    *stubNames
	images   *stubImages
	heroes   *stubHeroes
	sessions *stubSessions
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	f := &quizFixture{
		names:    &stubNames{name: "Lynvingen"},
		images:   &stubImages{uploadID: "init-1", url: testImageURL},
		heroes:   &stubHeroes{},
		sessions: &stubSessions{},
	}
	f.svc = NewQuizService(NewScoringService(zerolog.Nop()), f.names, f.images, f.heroes, f.sessions, zerolog.Nop())
	f.svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f
}

func testPhoto() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
}

// answerAll walks a run through every question, answering the given
// colors in order and repeating the last one if fewer are supplied.
func (f *quizFixture) answerAll(t *testing.T, runID string, colors ...models.HeroColor) *RunView {
	t.Helper()
	var view *RunView
	var err error
	for i := 0; i < len(quizQuestions); i++ {
		color := colors[len(colors)-1]
		if i < len(colors) {
			color = colors[i]
		}
		view, err = f.svc.Answer(runID, color)
		require.NoError(t, err)
	}
	return view
}

func (f *quizFixture) waitForPhase(t *testing.T, runID string, phase Phase) *RunView {
	t.Helper()
	var view *RunView
	require.Eventually(t, func() bool {
		v, err := f.svc.Get(runID)
		if err != nil {
			return false
		}
		view = v
		return v.Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return view
}

func (f *quizFixture) runToPreview(t *testing.T, gender models.Gender) *RunView {
	t.Helper()
	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: gender}, nil)
	require.NoError(t, err)

	view = f.answerAll(t, view.ID, models.ColorRed, models.ColorRed, models.ColorRed, models.ColorYellow, models.ColorGreen)

	if gender != models.GenderRobot {
		require.Equal(t, PhaseCamera, view.Phase)
		_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
		require.NoError(t, err)
	}
	return f.waitForPhase(t, view.ID, PhasePreview)
}

func TestStartValidation(t *testing.T) {
	f := newQuizFixture(t)

	_, err := f.svc.Start(models.UserData{Name: "", Gender: models.GenderMale}, nil)
	assert.True(t, IsValidation(err))

	_, err = f.svc.Start(models.UserData{Name: strings.Repeat("a", 22), Gender: models.GenderMale}, nil)
	assert.True(t, IsValidation(err))

	_, err = f.svc.Start(models.UserData{Name: "Nora", Gender: "alien"}, nil)
	assert.True(t, IsValidation(err))
}

func TestStartCountsNameLengthInRunes(t *testing.T) {
	f := newQuizFixture(t)

	// 21 characters but more bytes thanks to the Norwegian letters.
	name := string([]rune("Bjørn Ærlig Håkonsberg")[:21])
	view, err := f.svc.Start(models.UserData{Name: name, Gender: models.GenderMale}, nil)
	require.NoError(t, err)
	assert.Equal(t, name, view.UserName)

	_, err = f.svc.Start(models.UserData{Name: strings.Repeat("ø", 22), Gender: models.GenderMale}, nil)
	assert.True(t, IsValidation(err))
}

func TestFullFlowProducesPreview(t *testing.T) {
	f := newQuizFixture(t)

	view := f.runToPreview(t, models.GenderFemale)

	assert.Equal(t, models.ColorRed, view.SelectedColor)
	assert.Equal(t, "Lynvingen", view.HeroName)
	assert.False(t, view.UsedFallbackName)
	assert.Equal(t, testImageURL, view.ImageURL)
	assert.Equal(t, StepComplete, view.Step)
	assert.NotEmpty(t, view.AcceptToken)
	assert.Equal(t, 1, f.images.uploadCalls)
	require.Len(t, view.Results, 4)
	assert.Equal(t, models.ColorRed, view.Results[0].Color)
}

func TestRobotSkipsCamera(t *testing.T) {
	f := newQuizFixture(t)

	view, err := f.svc.Start(models.UserData{Name: "R2", Gender: models.GenderRobot}, nil)
	require.NoError(t, err)

	view = f.answerAll(t, view.ID, models.ColorBlue)
	assert.NotEqual(t, PhaseCamera, view.Phase)

	view = f.waitForPhase(t, view.ID, PhasePreview)
	assert.Zero(t, f.images.uploadCalls)
	assert.Equal(t, models.ColorBlue, view.SelectedColor)
}

func TestAnswerOutsideQuizPhase(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderMale)

	_, err := f.svc.Answer(view.ID, models.ColorRed)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestSubmitPhotoRejectsBadPayloads(t *testing.T) {
	f := newQuizFixture(t)
	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderFemale}, nil)
	require.NoError(t, err)
	f.answerAll(t, view.ID, models.ColorGreen)

	_, err = f.svc.SubmitPhoto(view.ID, "data:image/gif;base64,AAAA")
	assert.True(t, IsValidation(err))

	_, err = f.svc.SubmitPhoto(view.ID, "not a data url")
	assert.True(t, IsValidation(err))

	oversized := "data:image/png;base64," + strings.Repeat("A", (photoMaxBytes/3+10)*4)
	_, err = f.svc.SubmitPhoto(view.ID, oversized)
	assert.True(t, IsValidation(err))
}

func TestSubmitPhotoWhileGeneratingIsRefused(t *testing.T) {
	f := newQuizFixture(t)
	f.names.block = make(chan struct{})

	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderFemale}, nil)
	require.NoError(t, err)
	f.answerAll(t, view.ID, models.ColorGreen)

	_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
	require.NoError(t, err)

	_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
	assert.ErrorIs(t, err, ErrGenerating)

	close(f.names.block)
	f.waitForPhase(t, view.ID, PhasePreview)
}

func TestImageGenerationOuterRetry(t *testing.T) {
	f := newQuizFixture(t)
	f.images.genErr = &APIError{Status: 500, Message: "flaky"}
	f.images.genFailures = 2

	view := f.runToPreview(t, models.GenderFemale)

	assert.Equal(t, testImageURL, view.ImageURL)
	assert.Equal(t, 3, f.images.genCalls)
}

func TestRateLimitFailsWithoutOuterRetry(t *testing.T) {
	f := newQuizFixture(t)
	f.images.genErr = &RateLimitError{RetryAfter: 10 * time.Second}

	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderFemale}, nil)
	require.NoError(t, err)
	f.answerAll(t, view.ID, models.ColorGreen)
	_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
	require.NoError(t, err)

	view = f.waitForPhase(t, view.ID, PhaseCamera)
	assert.Equal(t, 1, f.images.genCalls)
	assert.Contains(t, view.Error, "10 sekunder")
}

func TestGenerationFailureReturnsToCamera(t *testing.T) {
	f := newQuizFixture(t)
	f.images.genErr = &APIError{Status: 500, Message: "down"}

	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderFemale}, nil)
	require.NoError(t, err)
	f.answerAll(t, view.ID, models.ColorGreen)
	_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
	require.NoError(t, err)

	view = f.waitForPhase(t, view.ID, PhaseCamera)
	assert.Equal(t, maxImageAttempts, f.images.genCalls)
	assert.NotEmpty(t, view.Error)
	assert.Empty(t, view.HeroName)
	assert.Empty(t, view.ImageURL)
}

func TestAcceptPersistsHeroAndStats(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderFemale)

	result, err := f.svc.Accept(view.ID, view.AcceptToken)
	require.NoError(t, err)

	assert.Equal(t, PhaseResults, result.View.Phase)
	assert.Empty(t, result.Warning)
	require.NotNil(t, result.Hero)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", result.Hero.ImageID)
	assert.Equal(t, 1, f.heroes.statsCalls)
	require.Len(t, f.heroes.created, 1)
	assert.Equal(t, "Lynvingen", f.heroes.created[0].Name)
	assert.Equal(t, "Nora", f.heroes.created[0].UserName)
	assert.Equal(t, models.ColorRed, f.heroes.created[0].Color)
}

func TestAcceptRequiresValidToken(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderFemale)

	_, err := f.svc.Accept(view.ID, "")
	assert.ErrorIs(t, err, ErrAcceptToken)

	_, err = f.svc.Accept(view.ID, "wrong")
	assert.ErrorIs(t, err, ErrAcceptToken)

	_, err = f.svc.Accept(view.ID, view.AcceptToken)
	require.NoError(t, err)

	// The run has moved on; a replay cannot persist twice.
	_, err = f.svc.Accept(view.ID, view.AcceptToken)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.Len(t, f.heroes.created, 1)
}

func TestAcceptNeedsSessionWhenSessionsActive(t *testing.T) {
	f := newQuizFixture(t)
	f.sessions.active = []models.Session{{Name: "Standen"}}

	view := f.runToPreview(t, models.GenderFemale)

	_, err := f.svc.Accept(view.ID, view.AcceptToken)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.heroes.created)

	// The token survives the refusal so the client can retry after
	// picking a session.
	view, err = f.svc.Get(view.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, view.AcceptToken)
}

func TestAcceptWithSessionWhenSessionsActive(t *testing.T) {
	f := newQuizFixture(t)
	f.sessions.active = []models.Session{{Name: "Standen"}}
	sessionID := uint(7)

	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderFemale}, &sessionID)
	require.NoError(t, err)
	f.answerAll(t, view.ID, models.ColorYellow)
	_, err = f.svc.SubmitPhoto(view.ID, testPhoto())
	require.NoError(t, err)
	view = f.waitForPhase(t, view.ID, PhasePreview)

	result, err := f.svc.Accept(view.ID, view.AcceptToken)
	require.NoError(t, err)
	require.Len(t, f.heroes.created, 1)
	require.NotNil(t, f.heroes.created[0].SessionID)
	assert.Equal(t, sessionID, *f.heroes.created[0].SessionID)
	assert.Empty(t, result.Warning)
}

func TestAcceptTreatsDuplicateImageAsSuccess(t *testing.T) {
	f := newQuizFixture(t)
	f.heroes.createErr = ErrDuplicateImage
	f.heroes.existing = &models.Hero{Name: "Lynvingen", ImageID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"}

	view := f.runToPreview(t, models.GenderFemale)

	result, err := f.svc.Accept(view.ID, view.AcceptToken)
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, PhaseResults, result.View.Phase)
	require.NotNil(t, result.Hero)
	assert.Equal(t, "Lynvingen", result.Hero.Name)
}

func TestAcceptPersistFailureWarnsButShowsResults(t *testing.T) {
	f := newQuizFixture(t)
	f.heroes.statsErr = assert.AnError

	view := f.runToPreview(t, models.GenderFemale)

	result, err := f.svc.Accept(view.ID, view.AcceptToken)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, PhaseResults, result.View.Phase)
}

func TestRetryBudget(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderFemale)

	for i := 0; i < maxUserRetries; i++ {
		_, err := f.svc.Retry(view.ID)
		require.NoError(t, err)
		view = f.waitForPhase(t, view.ID, PhasePreview)
	}
	assert.Equal(t, 0, view.RetriesLeft)

	_, err := f.svc.Retry(view.ID)
	assert.ErrorIs(t, err, ErrRetryLimit)

	// The budget refusal leaves the preview intact.
	view, err = f.svc.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, PhasePreview, view.Phase)
	assert.NotEmpty(t, view.ImageURL)
}

func TestRetryDeletesDiscardedImage(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderFemale)

	_, err := f.svc.Retry(view.ID)
	require.NoError(t, err)
	f.waitForPhase(t, view.ID, PhasePreview)

	require.Eventually(t, func() bool {
		f.images.mu.Lock()
		defer f.images.mu.Unlock()
		return len(f.images.deleted) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", f.images.deleted[0])
}

func TestResetDropsRun(t *testing.T) {
	f := newQuizFixture(t)
	view := f.runToPreview(t, models.GenderFemale)

	require.NoError(t, f.svc.Reset(view.ID))

	_, err := f.svc.Get(view.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, f.svc.Reset(view.ID), ErrRunNotFound)
}

func TestTallyFollowsAnswers(t *testing.T) {
	f := newQuizFixture(t)
	view, err := f.svc.Start(models.UserData{Name: "Nora", Gender: models.GenderRobot}, nil)
	require.NoError(t, err)

	view = f.answerAll(t, view.ID, models.ColorGreen, models.ColorGreen, models.ColorGreen, models.ColorBlue, models.ColorRed)
	view = f.waitForPhase(t, view.ID, PhasePreview)

	assert.Equal(t, models.ColorGreen, view.SelectedColor)
	require.Len(t, view.Results, 4)
	total := 0
	for _, r := range view.Results {
		total += r.Percentage
	}
	assert.InDelta(t, 100, total, 2)
}
