package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Subscription topics.
const (
	TopicMH       = "mh_subscribe"
	TopicAnnounce = "ann_subscribe"
)

// Subscription is one push registration. GroupID empty means the push goes
// to the user directly; otherwise it targets the group channel and mentions
// the user. Payload is a comma-joined key list whose meaning belongs to the
// topic; TimeWindow is an optional "HH:HH" hour restriction.
type Subscription struct {
	bun.BaseModel `bun:"table:dna_subscriptions,alias:sub"`

	ID         int64  `bun:"id,pk,autoincrement"`
	Topic      string `bun:"topic,notnull"`
	BotID      string `bun:"bot_id,notnull"`
	UserID     string `bun:"user_id,notnull"`
	GroupID    string `bun:"group_id,notnull,default:''"`
	Payload    string `bun:"payload,notnull,default:''"`
	TimeWindow string `bun:"time_window,notnull,default:''"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Private reports whether the push should go to the user directly.
func (s *Subscription) Private() bool {
	return s.GroupID == ""
}
