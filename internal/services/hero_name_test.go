package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

func newNameService(t *testing.T, handler http.Handler) *HeroNameService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHeroNameService("test-key", server.URL, "test-model", zerolog.Nop())
}

func chatReply(content string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	})
}

func TestGenerateNameHappyPath(t *testing.T) {
	s := newNameService(t, chatReply(`"Lynvingen"`))

	name, usedFallback, err := s.GenerateName(context.Background(), "Den analytiske", models.GenderFemale, models.ColorBlue)
	require.NoError(t, err)
	assert.Equal(t, "Lynvingen", name)
	assert.False(t, usedFallback)
}

func TestGenerateNameRejectsInvalidInputBeforeNetwork(t *testing.T) {
	s := newNameService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no network call expected")
	}))

	cases := []struct {
		personality string
		gender      models.Gender
		color       models.HeroColor
	}{
		{"Den modige; DROP TABLE heroes", models.GenderMale, models.ColorRed},
		{strings.Repeat("a", 101), models.GenderMale, models.ColorRed},
		{"", models.GenderMale, models.ColorRed},
		{"Den modige", "alien", models.ColorRed},
		{"Den modige", models.GenderMale, "purple"},
	}
	for _, tc := range cases {
		_, usedFallback, err := s.GenerateName(context.Background(), tc.personality, tc.gender, tc.color)
		assert.True(t, IsValidation(err), "personality=%q gender=%q color=%q", tc.personality, tc.gender, tc.color)
		assert.False(t, usedFallback)
	}
}

func TestGenerateNameFallsBackOnProviderError(t *testing.T) {
	s := newNameService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	name, usedFallback, err := s.GenerateName(context.Background(), "Den entusiastiske", models.GenderMale, models.ColorYellow)
	require.NoError(t, err)
	assert.True(t, usedFallback)
	assert.Equal(t, "Solstrålen", name)
}

func TestGenerateNameCountsLengthInRunes(t *testing.T) {
	// Exactly at the cap in characters, twice that in bytes.
	name := strings.Repeat("Ø", maxGeneratedNameLength)
	s := newNameService(t, chatReply(name))

	got, usedFallback, err := s.GenerateName(context.Background(), "Den analytiske", models.GenderFemale, models.ColorBlue)
	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Equal(t, name, got)
}

func TestGenerateNameFallsBackOnEmptyAndOversizedNames(t *testing.T) {
	for _, content := range []string{"", "   ", strings.Repeat("x", maxGeneratedNameLength+1), strings.Repeat("ø", maxGeneratedNameLength+1)} {
		s := newNameService(t, chatReply(content))

		name, usedFallback, err := s.GenerateName(context.Background(), "Den omtenksomme", models.GenderRobot, models.ColorGreen)
		require.NoError(t, err)
		assert.True(t, usedFallback)
		assert.Equal(t, "Skogvokteren", name)
	}
}

func TestGenerateNameFallsBackWhenUnconfigured(t *testing.T) {
	s := NewHeroNameService("", "http://unused", "test-model", zerolog.Nop())

	name, usedFallback, err := s.GenerateName(context.Background(), "Den handlekraftige", models.GenderFemale, models.ColorRed)
	require.NoError(t, err)
	assert.True(t, usedFallback)
	assert.Equal(t, "Kaptein Glød", name)
}

func TestDefaultNamesCoverEveryColor(t *testing.T) {
	names := DefaultNames()
	require.Len(t, names, len(models.AllColors))
	for _, name := range names {
		assert.NotEmpty(t, name)
	}
	assert.Contains(t, names, "Tankemesteren")
}
