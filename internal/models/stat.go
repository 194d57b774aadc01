package models

import "time"

// HeroStat is one accepted-hero counter row; totals are aggregated per
// color and optionally per session.
type HeroStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Color     HeroColor `gorm:"size:10;not null;index" json:"color"`
	SessionID *uint     `gorm:"index" json:"sessionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
