package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StatusInvalid is written into Account.Status when the upstream rejects the
// stored token. The literal matches what the web console historically showed,
// so existing rows keep their meaning.
const StatusInvalid = "无效"

// Sign switch values. Anything else is treated as a group channel id that
// receives the aggregated report.
const (
	SignSwitchOn  = "on"
	SignSwitchOff = "off"
)

// Account is one stored game credential. Several accounts may belong to the
// same (UserID, BotID) pair when a user has bound multiple game uids.
type Account struct {
	bun.BaseModel `bun:"table:dna_accounts,alias:da"`

	ID         int64  `bun:"id,pk,autoincrement"`
	UserID     string `bun:"user_id,notnull"`
	BotID      string `bun:"bot_id,notnull"`
	UID        string `bun:"uid,notnull"`
	Cookie     string `bun:"cookie"`
	DevCode    string `bun:"dev_code"`
	Status     string `bun:"status"`
	SignSwitch string `bun:"sign_switch,default:'off'"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Valid reports whether the credential can still be tried against the
// upstream. A failed liveness probe flips Status to StatusInvalid.
func (a *Account) Valid() bool {
	return a != nil && a.Cookie != "" && a.Status != StatusInvalid
}

// Binding is the ordered uid list of a (user, bot) pair. UIDs are joined with
// "_" and the first entry is the active uid used when commands omit one.
type Binding struct {
	bun.BaseModel `bun:"table:dna_bindings,alias:db"`

	ID      int64  `bun:"id,pk,autoincrement"`
	UserID  string `bun:"user_id,notnull"`
	BotID   string `bun:"bot_id,notnull"`
	GroupID string `bun:"group_id"`
	UIDs    string `bun:"uids,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
