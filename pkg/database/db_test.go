package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/bts-codec/pkg/logger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "history", "test.db")}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := openTestDB(t)
	assert.NotNil(t, db.GetDB())
	assert.True(t, db.GetDB().Migrator().HasTable(&DecodeRecord{}))
}

func TestDecodeRecord_BeforeCreate(t *testing.T) {
	repo := openTestDB(t).Decodes()

	rec := &DecodeRecord{Channel: "xcch", Scheme: "xCCH", OK: true, NErrors: 12, NBitsTotal: 456}
	require.NoError(t, repo.Create(rec))

	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.InDelta(t, 12.0/456.0, rec.BER, 1e-12)
}

func TestGetRecent(t *testing.T) {
	repo := openTestDB(t).Decodes()
	base := time.Now().Add(-time.Minute)
	for i, ch := range []string{"xcch", "pdtch", "xcch", "tch_f"} {
		require.NoError(t, repo.Create(&DecodeRecord{
			Channel:   ch,
			Scheme:    "CS-1",
			OK:        true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := repo.GetRecent("", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "tch_f", all[0].Channel)

	xcch, err := repo.GetRecent("xcch", 10)
	require.NoError(t, err)
	assert.Len(t, xcch, 2)

	limited, err := repo.GetRecent("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSummary(t *testing.T) {
	repo := openTestDB(t).Decodes()
	records := []DecodeRecord{
		{Channel: "pdtch", Scheme: "MCS-9", OK: true, NErrors: 10, NBitsTotal: 1000},
		{Channel: "pdtch", Scheme: "MCS-9", OK: false, NErrors: 30, NBitsTotal: 1000},
		{Channel: "xcch", Scheme: "xCCH", OK: true, NErrors: 0, NBitsTotal: 456},
	}
	for i := range records {
		require.NoError(t, repo.Create(&records[i]))
	}

	sum, err := repo.Summary(time.Time{})
	require.NoError(t, err)
	require.Len(t, sum, 2)

	assert.Equal(t, "pdtch", sum[0].Channel)
	assert.Equal(t, int64(2), sum[0].Blocks)
	assert.Equal(t, int64(1), sum[0].Failures)
	assert.Equal(t, int64(40), sum[0].NErrors)
	assert.InDelta(t, 0.02, sum[0].MeanBER, 1e-12)

	assert.Equal(t, "xcch", sum[1].Channel)
	assert.Zero(t, sum[1].Failures)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := openTestDB(t).Decodes()
	require.NoError(t, repo.Create(&DecodeRecord{Channel: "sch", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, repo.Create(&DecodeRecord{Channel: "sch"}))

	n, err := repo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := repo.GetRecent("", 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
