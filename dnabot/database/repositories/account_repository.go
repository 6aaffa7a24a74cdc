package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/duetnight/dnabot/dnabot/database/models"
)

var (
	ErrUIDExists   = errors.New("uid already bound")
	ErrUIDInvalid  = errors.New("uid must be a 13-digit number")
	ErrUIDNotBound = errors.New("uid not bound")
)

const uidLength = 13

// AccountRepository stores game credentials and the per-user uid bindings.
type AccountRepository interface {
	Get(ctx context.Context, uid, userID, botID string) (*models.Account, error)
	ListByUser(ctx context.Context, userID, botID string) ([]*models.Account, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	ListAllValid(ctx context.Context) ([]*models.Account, error)
	Upsert(ctx context.Context, account *models.Account) error
	MarkInvalid(ctx context.Context, uid, cookie string) error
	SetSignSwitch(ctx context.Context, uid, userID, botID, value string) error
	Delete(ctx context.Context, uid, userID, botID string) (int64, error)
	DeleteAllInvalid(ctx context.Context) (int64, error)

	BindUID(ctx context.Context, userID, botID, groupID, uid string) error
	UnbindUID(ctx context.Context, userID, botID, uid string) error
	ClearUIDs(ctx context.Context, userID, botID string) error
	SwitchActiveUID(ctx context.Context, userID, botID, uid string) error
	UIDList(ctx context.Context, userID, botID string) ([]string, error)
	ActiveUID(ctx context.Context, userID, botID string) (string, error)
}

type accountRepository struct {
	db *bun.DB
}

func NewAccountRepository(db *bun.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, uid, userID, botID string) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("uid = ? AND user_id = ? AND bot_id = ?", uid, userID, botID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) ListByUser(ctx context.Context, userID, botID string) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Order("id ASC").
		Scan(ctx)
	return accounts, err
}

// ListAll returns every stored account, including invalidated ones. The
// scheduled signin run wants those too so it can report expired uids.
func (r *accountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Order("id ASC").
		Scan(ctx)
	return accounts, err
}

// ListAllValid returns every account that still has a cookie and is not
// flagged invalid, across all users.
func (r *accountRepository) ListAllValid(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Where("cookie IS NOT NULL AND cookie != ''").
		Where("status IS NULL OR status = ''").
		Order("id ASC").
		Scan(ctx)
	return accounts, err
}

// Upsert inserts the credential or refreshes cookie/dev_code/status of the
// existing (user, bot, uid) row, as happens on re-login.
func (r *accountRepository) Upsert(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(account).
		On("CONFLICT (user_id, bot_id, uid) DO UPDATE").
		Set("cookie = EXCLUDED.cookie").
		Set("dev_code = EXCLUDED.dev_code").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// MarkInvalid is the write-through invalidation used after a failed liveness
// probe. Matching on (uid, cookie) avoids clobbering a newer token written by
// a concurrent re-login.
func (r *accountRepository) MarkInvalid(ctx context.Context, uid, cookie string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("status = ?", models.StatusInvalid).
		Set("updated_at = ?", time.Now()).
		Where("uid = ? AND cookie = ?", uid, cookie).
		Exec(ctx)
	return err
}

func (r *accountRepository) SetSignSwitch(ctx context.Context, uid, userID, botID, value string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("sign_switch = ?", value).
		Set("updated_at = ?", time.Now()).
		Where("uid = ? AND user_id = ? AND bot_id = ?", uid, userID, botID).
		Exec(ctx)
	return err
}

func (r *accountRepository) Delete(ctx context.Context, uid, userID, botID string) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Account)(nil)).
		Where("uid = ? AND user_id = ? AND bot_id = ?", uid, userID, botID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accountRepository) DeleteAllInvalid(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Account)(nil)).
		Where("status = ? OR cookie = ''", models.StatusInvalid).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accountRepository) binding(ctx context.Context, userID, botID string) (*models.Binding, error) {
	binding := new(models.Binding)
	err := r.db.NewSelect().
		Model(binding).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return binding, nil
}

func splitUIDs(joined string) []string {
	var uids []string
	seen := make(map[string]bool)
	for _, uid := range strings.Split(joined, "_") {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		uids = append(uids, uid)
	}
	return uids
}

// BindUID appends a uid to the user's ordered binding list, creating the
// binding row on first use.
func (r *accountRepository) BindUID(ctx context.Context, userID, botID, groupID, uid string) error {
	if len(uid) != uidLength || !isDigits(uid) {
		return ErrUIDInvalid
	}

	binding, err := r.binding(ctx, userID, botID)
	if err != nil {
		return err
	}
	if binding == nil {
		_, err := r.db.NewInsert().
			Model(&models.Binding{UserID: userID, BotID: botID, GroupID: groupID, UIDs: uid}).
			Exec(ctx)
		return err
	}

	uids := splitUIDs(binding.UIDs)
	for _, existing := range uids {
		if existing == uid {
			return ErrUIDExists
		}
	}
	uids = append(uids, uid)

	_, err = r.db.NewUpdate().
		Model((*models.Binding)(nil)).
		Set("uids = ?", strings.Join(uids, "_")).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Exec(ctx)
	return err
}

// UnbindUID drops one uid from the binding list. The credential row, if any,
// is left alone.
func (r *accountRepository) UnbindUID(ctx context.Context, userID, botID, uid string) error {
	binding, err := r.binding(ctx, userID, botID)
	if err != nil {
		return err
	}
	if binding == nil {
		return ErrUIDNotBound
	}

	uids := splitUIDs(binding.UIDs)
	kept := uids[:0]
	for _, existing := range uids {
		if existing != uid {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(uids) {
		return ErrUIDNotBound
	}

	_, err = r.db.NewUpdate().
		Model((*models.Binding)(nil)).
		Set("uids = ?", strings.Join(kept, "_")).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Exec(ctx)
	return err
}

// ClearUIDs empties the user's binding list.
func (r *accountRepository) ClearUIDs(ctx context.Context, userID, botID string) error {
	binding, err := r.binding(ctx, userID, botID)
	if err != nil {
		return err
	}
	if binding == nil || binding.UIDs == "" {
		return ErrUIDNotBound
	}

	_, err = r.db.NewUpdate().
		Model((*models.Binding)(nil)).
		Set("uids = ''").
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Exec(ctx)
	return err
}

// SwitchActiveUID moves the uid to the front of the binding list, making it
// the default for commands that omit one.
func (r *accountRepository) SwitchActiveUID(ctx context.Context, userID, botID, uid string) error {
	binding, err := r.binding(ctx, userID, botID)
	if err != nil {
		return err
	}
	if binding == nil {
		return ErrUIDNotBound
	}

	uids := splitUIDs(binding.UIDs)
	idx := -1
	for i, existing := range uids {
		if existing == uid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUIDNotBound
	}

	uids = append(uids[:idx], uids[idx+1:]...)
	uids = append([]string{uid}, uids...)

	_, err = r.db.NewUpdate().
		Model((*models.Binding)(nil)).
		Set("uids = ?", strings.Join(uids, "_")).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Exec(ctx)
	return err
}

func (r *accountRepository) UIDList(ctx context.Context, userID, botID string) ([]string, error) {
	binding, err := r.binding(ctx, userID, botID)
	if err != nil || binding == nil {
		return nil, err
	}
	return splitUIDs(binding.UIDs), nil
}

func (r *accountRepository) ActiveUID(ctx context.Context, userID, botID string) (string, error) {
	uids, err := r.UIDList(ctx, userID, botID)
	if err != nil || len(uids) == 0 {
		return "", err
	}
	return uids[0], nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
