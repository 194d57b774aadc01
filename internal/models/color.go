package models

import "fmt"

type HeroColor string

const (
	ColorRed    HeroColor = "red"
	ColorYellow HeroColor = "yellow"
	ColorGreen  HeroColor = "green"
	ColorBlue   HeroColor = "blue"
)

// AllColors is the fixed evaluation order used for tallies, tiebreaks
// and score serialization.
var AllColors = []HeroColor{ColorRed, ColorYellow, ColorGreen, ColorBlue}

func (c HeroColor) Valid() bool {
	switch c {
	case ColorRed, ColorYellow, ColorGreen, ColorBlue:
		return true
	}
	return false
}

// ColorTally counts quiz answers per color. Exactly one field is
// incremented per answered question, so the sum of all four always
// equals the number of questions answered.
type ColorTally struct {
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
	Blue   int `json:"blue"`
}

func (t *ColorTally) Increment(color HeroColor) error {
	switch color {
	case ColorRed:
		t.Red++
	case ColorYellow:
		t.Yellow++
	case ColorGreen:
		t.Green++
	case ColorBlue:
		t.Blue++
	default:
		return fmt.Errorf("unknown color %q", color)
	}
	return nil
}

func (t ColorTally) Count(color HeroColor) int {
	switch color {
	case ColorRed:
		return t.Red
	case ColorYellow:
		return t.Yellow
	case ColorGreen:
		return t.Green
	case ColorBlue:
		return t.Blue
	}
	return 0
}

func (t ColorTally) Total() int {
	return t.Red + t.Yellow + t.Green + t.Blue
}

// PersonalityResult is the derived per-color share of the quiz outcome.
// The slice produced by scoring is sorted descending by percentage; the
// first entry is the dominant personality driving generation.
type PersonalityResult struct {
	Color      HeroColor `json:"color"`
	Name       string    `json:"name"`
	HeroName   string    `json:"heroName"`
	Percentage int       `json:"percentage"`
}
