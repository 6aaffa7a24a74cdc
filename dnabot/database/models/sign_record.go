package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Sign targets: a day's record is complete for a task once its counter
// reaches the target. Counters saturate there and never decrement.
const (
	TargetGameSign  = 1
	TargetBBSSign   = 1
	TargetBBSDetail = 3
	TargetBBSLike   = 5
	TargetBBSShare  = 1
	TargetBBSReply  = 1
)

// SignRecord holds one calendar day of signin progress for one game uid.
// Rows are created lazily on the first status check of the day and purged
// once they are older than two days.
type SignRecord struct {
	bun.BaseModel `bun:"table:dna_sign_records,alias:ds"`

	ID        int64  `bun:"id,pk,autoincrement"`
	UID       string `bun:"uid,notnull"`
	Date      string `bun:"date,notnull"`
	GameSign  int    `bun:"game_sign,notnull,default:0"`
	BBSSign   int    `bun:"bbs_sign,notnull,default:0"`
	BBSDetail int    `bun:"bbs_detail,notnull,default:0"`
	BBSLike   int    `bun:"bbs_like,notnull,default:0"`
	BBSShare  int    `bun:"bbs_share,notnull,default:0"`
	BBSReply  int    `bun:"bbs_reply,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// NewSignRecord returns a zeroed record for today.
func NewSignRecord(uid, date string) *SignRecord {
	return &SignRecord{UID: uid, Date: date}
}

// GameSignComplete reports whether the in-game signin already hit its target.
func (r *SignRecord) GameSignComplete() bool {
	return r.GameSign >= TargetGameSign
}

// Target returns the saturation target for a community task kind.
func Target(kind string) int {
	switch kind {
	case "bbs_sign":
		return TargetBBSSign
	case "bbs_detail":
		return TargetBBSDetail
	case "bbs_like":
		return TargetBBSLike
	case "bbs_share":
		return TargetBBSShare
	case "bbs_reply":
		return TargetBBSReply
	}
	return 0
}

// Counter returns the current value of a community task counter.
func (r *SignRecord) Counter(kind string) int {
	switch kind {
	case "bbs_sign":
		return r.BBSSign
	case "bbs_detail":
		return r.BBSDetail
	case "bbs_like":
		return r.BBSLike
	case "bbs_share":
		return r.BBSShare
	case "bbs_reply":
		return r.BBSReply
	}
	return 0
}

// SetCounter writes a community task counter, clamped to its target.
func (r *SignRecord) SetCounter(kind string, v int) {
	if t := Target(kind); v > t {
		v = t
	}
	switch kind {
	case "bbs_sign":
		r.BBSSign = v
	case "bbs_detail":
		r.BBSDetail = v
	case "bbs_like":
		r.BBSLike = v
	case "bbs_share":
		r.BBSShare = v
	case "bbs_reply":
		r.BBSReply = v
	}
}

// AddCounter bumps a community task counter by one, saturating at the target.
func (r *SignRecord) AddCounter(kind string) {
	r.SetCounter(kind, r.Counter(kind)+1)
}

// BBSComplete reports whether every enabled community task hit its target.
// Tasks not in enabled are ignored.
func (r *SignRecord) BBSComplete(enabled []string) bool {
	for _, kind := range enabled {
		if r.Counter(kind) < Target(kind) {
			return false
		}
	}
	return true
}
