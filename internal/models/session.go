package models

import "time"

// Session is a time-boxed event grouping of quiz runs. A hero recorded
// with a nil SessionID belongs to no session ("all sessions").
type Session struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Description string     `gorm:"size:500" json:"description,omitempty"`
	StartDate   time.Time  `gorm:"not null" json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CurrentlyActive reports whether the session is marked active and the
// given instant falls inside its date window.
func (s Session) CurrentlyActive(now time.Time) bool {
	if !s.Active {
		return false
	}
	if now.Before(s.StartDate) {
		return false
	}
	if s.EndDate != nil && now.After(*s.EndDate) {
		return false
	}
	return true
}
