package mh

import (
	"context"
	"strings"
	"time"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

// GroupLine is one refreshed commission with the group members to mention.
type GroupLine struct {
	Text    string
	UserIDs []string
}

// GroupPush aggregates one group channel's refresh notification.
type GroupPush struct {
	Lines []GroupLine
}

// PushReport is the hourly refresh notification, split the way it gets
// sent: one message per subscribed user, one aggregated message per group.
type PushReport struct {
	Private map[string][]string // user id -> message lines
	Groups  map[string]*GroupPush
}

func (p *PushReport) Empty() bool {
	return len(p.Private) == 0 && len(p.Groups) == 0
}

// Push fetches the just-flipped rotation and builds the notification for
// every subscription whose time window covers the current hour.
func (s *Service) Push(ctx context.Context) (*PushReport, error) {
	if !s.cfg.pushEnabled("private") && !s.cfg.pushEnabled("group") {
		return &PushReport{}, nil
	}

	refresh := s.rotation.NextRefresh()
	tracks := s.rotation.Tracks(ctx, refresh, true)
	if len(tracks) == 0 {
		return &PushReport{}, nil
	}

	subs, err := s.subs.ListByTopic(ctx, models.TopicMH)
	if err != nil {
		return nil, err
	}

	return s.buildPush(tracks, subs, s.rotation.now()), nil
}

// buildPush matches the active rotation against every subscription. Keys
// resolve both bare ("拆解") and track-scoped ("角色:拆解") forms.
func (s *Service) buildPush(tracks []dnaapi.RotationTrack, subs []*models.Subscription, now time.Time) *PushReport {
	keyTypes := make(map[string][]dnaapi.RotationType)
	var keyOrder []string
	add := func(key string, t dnaapi.RotationType) {
		if _, ok := keyTypes[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		keyTypes[key] = append(keyTypes[key], t)
	}
	for _, track := range tracks {
		if track.Type == "" {
			continue
		}
		for _, instance := range track.Instances {
			name := baseName(instance.Name)
			add(name, track.Type)
			add(SubscribeKey(name, track.Type.TypeName()), track.Type)
		}
	}

	report := &PushReport{
		Private: make(map[string][]string),
		Groups:  make(map[string]*GroupPush),
	}

	for _, sub := range subs {
		if sub.Payload == "" {
			continue
		}
		if start, end, ok := ParseWindow(sub.TimeWindow); ok {
			if now.Hour() < start || now.Hour() > end {
				continue
			}
		}

		mine := make(map[string]bool)
		for _, k := range SplitKeys(sub.Payload) {
			mine[k] = true
		}
		var valid []string
		for _, key := range keyOrder {
			if mine[key] {
				valid = append(valid, key)
			}
		}
		if len(valid) == 0 {
			continue
		}

		switch {
		case sub.Private() && s.cfg.pushEnabled("private"):
			lines := []string{"当前订阅密函已刷新:"}
			for _, key := range valid {
				lines = append(lines, refreshLines(key, keyTypes[key])...)
			}
			report.Private[sub.UserID] = lines

		case !sub.Private() && s.cfg.pushEnabled("group"):
			group := report.Groups[sub.GroupID]
			if group == nil {
				group = &GroupPush{}
				report.Groups[sub.GroupID] = group
			}
			for _, key := range valid {
				for _, text := range refreshLines(key, keyTypes[key]) {
					group.mention(text, sub.UserID)
				}
			}
		}
	}

	return report
}

// refreshLines renders one matched key as "track : name" lines, one per
// track it appears in.
func refreshLines(key string, types []dnaapi.RotationType) []string {
	name := key
	if i := strings.Index(key, ":"); i >= 0 {
		name = key[i+1:]
	}
	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, t.TypeName()+" : "+name)
	}
	return lines
}

func (g *GroupPush) mention(text, userID string) {
	for i := range g.Lines {
		if g.Lines[i].Text == text {
			g.Lines[i].UserIDs = append(g.Lines[i].UserIDs, userID)
			return
		}
	}
	g.Lines = append(g.Lines, GroupLine{Text: text, UserIDs: []string{userID}})
}
