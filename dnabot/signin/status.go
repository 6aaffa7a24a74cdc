package signin

// Status is the outcome of one signin step for one account and day.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusSkipped
	StatusForbidden
	StatusFailed
)

// Label renders the status the way the daily report shows it.
func (s Status) Label() string {
	switch s {
	case StatusDone:
		return "✅ 已完成"
	case StatusSkipped:
		return "🚫 请勿重复签到"
	case StatusForbidden:
		return "🚫 签到功能已关闭"
	case StatusFailed:
		return "❌ 签到失败"
	}
	return "❌ 未完成"
}

// AutoLabel is the short form used when aggregating scheduled-run pushes.
func (s Status) AutoLabel() string {
	switch s {
	case StatusForbidden:
		return "禁止"
	case StatusSkipped:
		return "请勿重复签到"
	case StatusDone:
		return "签到成功"
	}
	return "签到失败"
}

// Settled reports whether the step needs no further upstream calls today.
func (s Status) Settled() bool {
	return s != StatusPending
}
