package services

import "github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"

type QuizOption struct {
	Text  string           `json:"text"`
	Color models.HeroColor `json:"color"`
}

type QuizQuestion struct {
	Text    string       `json:"text"`
	Options []QuizOption `json:"options"`
}

// quizQuestions is the fixed personality question bank. Every option
// maps to exactly one color, so the tally total always equals the
// number of answered questions.
var quizQuestions = []QuizQuestion{
	{
		Text: "Hva gjør du først når du kommer til en fest?",
		Options: []QuizOption{
			{Text: "Tar styringen på leken", Color: models.ColorRed},
			{Text: "Hilser på alle sammen", Color: models.ColorYellow},
			{Text: "Finner noen som står alene", Color: models.ColorGreen},
			{Text: "Observerer rommet først", Color: models.ColorBlue},
		},
	},
	{
		Text: "Hvordan løser du et vanskelig problem?",
		Options: []QuizOption{
			{Text: "Handler raskt og bestemt", Color: models.ColorRed},
			{Text: "Samler folk til idémyldring", Color: models.ColorYellow},
			{Text: "Spør hvordan alle har det med det", Color: models.ColorGreen},
			{Text: "Analyserer alle detaljene", Color: models.ColorBlue},
		},
	},
	{
		Text: "Hva er viktigst for deg i et lag?",
		Options: []QuizOption{
			{Text: "At vi vinner", Color: models.ColorRed},
			{Text: "At vi har det gøy", Color: models.ColorYellow},
			{Text: "At alle blir inkludert", Color: models.ColorGreen},
			{Text: "At planen er gjennomtenkt", Color: models.ColorBlue},
		},
	},
	{
		Text: "Hvordan reagerer du på en overraskelse?",
		Options: []QuizOption{
			{Text: "Tar kontroll over situasjonen", Color: models.ColorRed},
			{Text: "Jubler og vil feire", Color: models.ColorYellow},
			{Text: "Tenker på hvordan andre opplever den", Color: models.ColorGreen},
			{Text: "Vil vite hva som egentlig skjedde", Color: models.ColorBlue},
		},
	},
	{
		Text: "Hva beskriver deg best?",
		Options: []QuizOption{
			{Text: "Målrettet", Color: models.ColorRed},
			{Text: "Entusiastisk", Color: models.ColorYellow},
			{Text: "Omsorgsfull", Color: models.ColorGreen},
			{Text: "Grundig", Color: models.ColorBlue},
		},
	},
}

func Questions() []QuizQuestion {
	return quizQuestions
}
