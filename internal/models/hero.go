package models

import "time"

type Hero struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	UserName        string     `gorm:"size:21;not null" json:"userName"`
	ImageID         string     `gorm:"size:64;uniqueIndex;not null" json:"imageId"`
	Color           HeroColor  `gorm:"size:10;not null" json:"color"`
	Gender          Gender     `gorm:"size:10;not null" json:"gender"`
	PersonalityType string     `gorm:"size:100;not null" json:"personalityType"`
	ColorScores     ColorTally `gorm:"embedded;embeddedPrefix:score_" json:"colorScores"`
	Printed         bool       `gorm:"not null;default:false" json:"printed"`
	Carousel        bool       `gorm:"not null;default:true" json:"carousel"`
	SessionID       *uint      `gorm:"index" json:"sessionId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}
