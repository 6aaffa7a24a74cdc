package announce

import (
	"regexp"
	"time"
)

var hoursAgoRe = regexp.MustCompile(`(\d+)小时前`)

// ParsePostTime converts the feed's loose postTime text into a unix
// timestamp. The feed mixes four shapes: "01-15" (current year implied),
// "17小时前", "2026-01-15" and "2026-01-15 18:30". Returns 0 when none match.
func ParsePostTime(postTime string, now time.Time) int64 {
	year := now.Format("2006")
	if t, err := time.ParseInLocation("2006-01-02", year+"-"+postTime, now.Location()); err == nil {
		return t.Unix()
	}

	if m := hoursAgoRe.FindStringSubmatch(postTime); m != nil {
		var hours int64
		for _, ch := range m[1] {
			hours = hours*10 + int64(ch-'0')
		}
		return now.Unix() - hours*3600
	}

	if t, err := time.ParseInLocation("2006-01-02", postTime, now.Location()); err == nil {
		return t.Unix()
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", postTime, now.Location()); err == nil {
		return t.Unix()
	}
	return 0
}
