package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRepository handles decode history operations
type DecodeRepository struct {
	db *gorm.DB
}

// NewDecodeRepository creates a new decode repository
func NewDecodeRepository(db *gorm.DB) *DecodeRepository {
	return &DecodeRepository{db: db}
}

// Create adds a new decode record
func (r *DecodeRepository) Create(rec *DecodeRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N records, optionally for one channel
func (r *DecodeRepository) GetRecent(channel string, limit int) ([]DecodeRecord, error) {
	var records []DecodeRecord
	q := r.db.Order("created_at DESC, id DESC").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	err := q.Find(&records).Error
	return records, err
}

// Summary aggregates the records created since the given time per channel
// and scheme.
func (r *DecodeRepository) Summary(since time.Time) ([]SchemeSummary, error) {
	var out []SchemeSummary
	err := r.db.Model(&DecodeRecord{}).
		Select("channel, scheme, COUNT(*) AS blocks, " +
			"SUM(CASE WHEN ok THEN 0 ELSE 1 END) AS failures, " +
			"SUM(n_errors) AS n_errors, SUM(n_bits_total) AS n_bits_total").
		Where("created_at >= ?", since.UTC()).
		Group("channel, scheme").
		Order("channel, scheme").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].NBitsTotal > 0 {
			out[i].MeanBER = float64(out[i].NErrors) / float64(out[i].NBitsTotal)
		}
	}
	return out, nil
}

// DeleteOlderThan deletes records older than the specified time
func (r *DecodeRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before.UTC()).Delete(&DecodeRecord{})
	return result.RowsAffected, result.Error
}
