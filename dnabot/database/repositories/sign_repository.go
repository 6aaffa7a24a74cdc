package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/duetnight/dnabot/dnabot/database/models"
)

var ErrEmptyUID = errors.New("sign record without uid")

// SignRepository stores the daily signin counters. Writes go through a single
// repository-wide lock: volume is at most one upsert per account per day, so
// serializing them is cheaper than getting merge-on-conflict right for every
// counter column.
type SignRepository interface {
	Get(ctx context.Context, uid, date string) (*models.SignRecord, error)
	Upsert(ctx context.Context, record *models.SignRecord) error
	ListByDate(ctx context.Context, date string) ([]*models.SignRecord, error)
	PurgeBefore(ctx context.Context, date string) (int64, error)
}

type signRepository struct {
	db *bun.DB
	mu sync.Mutex
}

func NewSignRepository(db *bun.DB) SignRepository {
	return &signRepository{db: db}
}

func (r *signRepository) Get(ctx context.Context, uid, date string) (*models.SignRecord, error) {
	record := new(models.SignRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("uid = ? AND date = ?", uid, date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Upsert writes the day's record. Existing rows only take counter values that
// are non-zero in the incoming record, so a partial run never zeroes progress
// written by an earlier one.
func (r *signRepository) Upsert(ctx context.Context, record *models.SignRecord) error {
	if record.UID == "" {
		return ErrEmptyUID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.Get(ctx, record.UID, record.Date)
	if err != nil {
		return err
	}

	if existing == nil {
		record.CreatedAt = time.Now()
		record.UpdatedAt = record.CreatedAt
		_, err := r.db.NewInsert().Model(record).Exec(ctx)
		return err
	}

	merge := func(current, incoming int) int {
		if incoming != 0 {
			return incoming
		}
		return current
	}
	existing.GameSign = merge(existing.GameSign, record.GameSign)
	existing.BBSSign = merge(existing.BBSSign, record.BBSSign)
	existing.BBSDetail = merge(existing.BBSDetail, record.BBSDetail)
	existing.BBSLike = merge(existing.BBSLike, record.BBSLike)
	existing.BBSShare = merge(existing.BBSShare, record.BBSShare)
	existing.BBSReply = merge(existing.BBSReply, record.BBSReply)
	existing.UpdatedAt = time.Now()

	_, err = r.db.NewUpdate().
		Model(existing).
		WherePK().
		Exec(ctx)
	return err
}

func (r *signRepository) ListByDate(ctx context.Context, date string) ([]*models.SignRecord, error) {
	var records []*models.SignRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("date = ?", date).
		Scan(ctx)
	return records, err
}

// PurgeBefore deletes every record dated at or before the given day. Run by
// the daily sweep with a date two days back.
func (r *signRepository) PurgeBefore(ctx context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.NewDelete().
		Model((*models.SignRecord)(nil)).
		Where("date <= ?", date).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
