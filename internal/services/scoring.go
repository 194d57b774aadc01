package services

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

// Personality metadata per color, in fixed tiebreak order.
type Personality struct {
	Color    models.HeroColor
	Name     string
	HeroName string
}

var personalities = []Personality{
	{Color: models.ColorRed, Name: "Den handlekraftige", HeroName: "Kaptein Glød"},
	{Color: models.ColorYellow, Name: "Den entusiastiske", HeroName: "Solstrålen"},
	{Color: models.ColorGreen, Name: "Den omtenksomme", HeroName: "Skogvokteren"},
	{Color: models.ColorBlue, Name: "Den analytiske", HeroName: "Tankemesteren"},
}

func PersonalityFor(color models.HeroColor) (Personality, bool) {
	for _, p := range personalities {
		if p.Color == color {
			return p, true
		}
	}
	return Personality{}, false
}

type ScoringService struct {
	log zerolog.Logger
}

func NewScoringService(logger zerolog.Logger) *ScoringService {
	return &ScoringService{log: logger}
}

// CalculateResults turns a tally into per-color percentages sorted
// descending. Percentages are rounded independently and may not sum to
// 100. Ties keep the fixed red/yellow/green/blue order so the dominant
// color is deterministic.
func (s *ScoringService) CalculateResults(tally models.ColorTally) []models.PersonalityResult {
	total := tally.Total()

	results := make([]models.PersonalityResult, 0, len(personalities))
	for _, p := range personalities {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(tally.Count(p.Color)) / float64(total) * 100))
		}
		results = append(results, models.PersonalityResult{
			Color:      p.Color,
			Name:       p.Name,
			HeroName:   p.HeroName,
			Percentage: pct,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Percentage > results[b].Percentage
	})

	return results
}

// PrintScores converts a tally to the 0-10 scale used by the printable
// card. Scores are proportional with largest-remainder rounding, so any
// non-empty tally sums to exactly 10.
func (s *ScoringService) PrintScores(tally models.ColorTally) models.ColorTally {
	total := tally.Total()
	if total == 0 {
		return models.ColorTally{}
	}

	type share struct {
		color    models.HeroColor
		whole    int
		fraction float64
		order    int
	}

	shares := make([]share, 0, len(models.AllColors))
	sum := 0
	for i, color := range models.AllColors {
		exact := float64(tally.Count(color)) / float64(total) * 10
		whole := int(math.Floor(exact))
		shares = append(shares, share{color: color, whole: whole, fraction: exact - float64(whole), order: i})
		sum += whole
	}

	// Hand out the remainder to the largest fractional parts.
	sort.SliceStable(shares, func(a, b int) bool {
		if shares[a].fraction != shares[b].fraction {
			return shares[a].fraction > shares[b].fraction
		}
		return shares[a].order < shares[b].order
	})
	for i := 0; i < 10-sum; i++ {
		shares[i%len(shares)].whole++
	}

	var out models.ColorTally
	for _, sh := range shares {
		switch sh.color {
		case models.ColorRed:
			out.Red = sh.whole
		case models.ColorYellow:
			out.Yellow = sh.whole
		case models.ColorGreen:
			out.Green = sh.whole
		case models.ColorBlue:
			out.Blue = sh.whole
		}
	}
	return out
}

// PrintLink builds the deep link for the printable card. Scores travel
// as a comma-separated color:value list on the 0-10 scale.
func (s *ScoringService) PrintLink(hero models.Hero) string {
	scores := s.PrintScores(hero.ColorScores)

	parts := make([]string, 0, len(models.AllColors))
	for _, color := range models.AllColors {
		parts = append(parts, fmt.Sprintf("%s:%d", color, scores.Count(color)))
	}

	q := url.Values{}
	q.Set("imageId", hero.ImageID)
	q.Set("name", hero.UserName)
	q.Set("gender", string(hero.Gender))
	q.Set("heroName", hero.Name)
	q.Set("personalityName", hero.PersonalityType)
	q.Set("color", string(hero.Color))
	q.Set("scores", strings.Join(parts, ","))
	q.Set("print", "true")

	return "/print?" + q.Encode()
}

// ValidateColorConsistency reports whether the card, name and image
// were all produced for the same color.
func ValidateColorConsistency(cardColor, nameColor, imageColor models.HeroColor) bool {
	return cardColor == nameColor && nameColor == imageColor
}

// GetConsistentColor returns the agreed color when every supplied field
// matches, else the empty color.
func GetConsistentColor(colors ...models.HeroColor) models.HeroColor {
	var agreed models.HeroColor
	for _, c := range colors {
		if c == "" {
			continue
		}
		if agreed == "" {
			agreed = c
			continue
		}
		if c != agreed {
			return ""
		}
	}
	return agreed
}

// LogMismatch emits a diagnostic for a color disagreement. Never fails;
// the caller decides how to recover.
func (s *ScoringService) LogMismatch(expected, actual models.HeroColor) {
	s.log.Warn().
		Str("expected", string(expected)).
		Str("actual", string(actual)).
		Msg("hero color mismatch between card, name and image")
}
