package models

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderRobot  Gender = "robot"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderRobot:
		return true
	}
	return false
}

// UserData is captured once at registration and stays immutable for the
// rest of the quiz run. A robot gender skips the photo-capture step.
type UserData struct {
	Name   string `json:"name" binding:"required,min=1,max=21"`
	Gender Gender `json:"gender" binding:"required"`
}
