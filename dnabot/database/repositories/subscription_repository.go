package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/duetnight/dnabot/dnabot/database/models"
)

// SubscriptionRepository stores push registrations per topic.
type SubscriptionRepository interface {
	Get(ctx context.Context, topic, userID, botID string) (*models.Subscription, error)
	ListByTopic(ctx context.Context, topic string) ([]*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	UpdatePayload(ctx context.Context, topic, userID, botID, payload string) error
	UpdateWindow(ctx context.Context, topic, userID, botID, window string) error
	Delete(ctx context.Context, topic, userID, botID string) (int64, error)
}

type subscriptionRepository struct {
	db *bun.DB
}

func NewSubscriptionRepository(db *bun.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Get(ctx context.Context, topic, userID, botID string) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := r.db.NewSelect().
		Model(sub).
		Where("topic = ? AND user_id = ? AND bot_id = ?", topic, userID, botID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepository) ListByTopic(ctx context.Context, topic string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.NewSelect().
		Model(&subs).
		Where("topic = ?", topic).
		Order("id ASC").
		Scan(ctx)
	return subs, err
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(sub).
		On("CONFLICT (topic, user_id, bot_id) DO UPDATE").
		Set("group_id = EXCLUDED.group_id").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *subscriptionRepository) UpdatePayload(ctx context.Context, topic, userID, botID, payload string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("payload = ?", payload).
		Set("updated_at = ?", time.Now()).
		Where("topic = ? AND user_id = ? AND bot_id = ?", topic, userID, botID).
		Exec(ctx)
	return err
}

func (r *subscriptionRepository) UpdateWindow(ctx context.Context, topic, userID, botID, window string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("time_window = ?", window).
		Set("updated_at = ?", time.Now()).
		Where("topic = ? AND user_id = ? AND bot_id = ?", topic, userID, botID).
		Exec(ctx)
	return err
}

func (r *subscriptionRepository) Delete(ctx context.Context, topic, userID, botID string) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Subscription)(nil)).
		Where("topic = ? AND user_id = ? AND bot_id = ?", topic, userID, botID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
