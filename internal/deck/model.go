// Package deck owns the slide content model and its stores.
package deck

import "github.com/voicedeck/voicedeck/internal/shared"

// Slide ids are 1-based; the wire protocol and stores both use them.
type Slide struct {
	ID        int                `json:"id" gorm:"primaryKey"`
	Title     string             `json:"title"`
	Content   shared.StringSlice `json:"content" gorm:"type:text"`
	Narration string             `json:"narration"`
	Icon      string             `json:"icon,omitempty"`
}

func (Slide) TableName() string {
	return "slides"
}
