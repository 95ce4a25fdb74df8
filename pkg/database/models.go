package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRecord is one decoded block as seen by the engine.
type DecodeRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	RequestID  string    `gorm:"size:36;index" json:"request_id"`
	Channel    string    `gorm:"size:16;index;not null" json:"channel"`
	Scheme     string    `gorm:"size:16;index" json:"scheme"`
	OK         bool      `gorm:"not null" json:"ok"`
	Error      string    `gorm:"size:200" json:"error,omitempty"`
	FACCH      bool      `json:"facch"`
	NErrors    int       `json:"n_errors"`
	NBitsTotal int       `json:"n_bits_total"`
	BER        float64   `json:"ber"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for DecodeRecord
func (DecodeRecord) TableName() string {
	return "decodes"
}

// BeforeCreate fills the timestamp and the derived bit error ratio.
func (r *DecodeRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	// Stored in UTC so timestamps compare as text.
	r.CreatedAt = r.CreatedAt.UTC()
	if r.NBitsTotal > 0 {
		r.BER = float64(r.NErrors) / float64(r.NBitsTotal)
	}
	return nil
}

// SchemeSummary aggregates the history of one channel and scheme.
type SchemeSummary struct {
	Channel    string  `json:"channel"`
	Scheme     string  `json:"scheme"`
	Blocks     int64   `json:"blocks"`
	Failures   int64   `json:"failures"`
	NErrors    int64   `json:"n_errors"`
	NBitsTotal int64   `json:"n_bits_total"`
	MeanBER    float64 `json:"mean_ber"`
}
