package mh

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
)

// JoinKeys joins a key list into the stored payload form, deduplicated,
// keeping first-seen order.
func JoinKeys(keys []string) string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return strings.Join(out, ",")
}

// SplitKeys is the inverse of JoinKeys.
func SplitKeys(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ",")
}

// SubscribeKey renders one subscription key: "类型:名称", or the bare name
// when no track is given.
func SubscribeKey(name, track string) string {
	if track == "" {
		return name
	}
	return track + ":" + name
}

// ParseWindow parses the "HH:HH" push window. ok is false for anything not
// a valid start..end hour pair.
func ParseWindow(window string) (start, end int, ok bool) {
	parts := strings.SplitN(window, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if start < 0 || start > 23 || end < 0 || end > 23 || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// FormatWindow renders a push window back to its stored form.
func FormatWindow(start, end int) string {
	return fmt.Sprintf("%d:%d", start, end)
}

// subKeys expands a subscription request into stored keys: a bare name
// subscribes all three tracks at once.
func subKeys(name, track string) []string {
	if track == "" {
		keys := make([]string, 0, len(TrackNames))
		for _, t := range TrackNames {
			keys = append(keys, SubscribeKey(name, t))
		}
		return keys
	}
	return []string{SubscribeKey(name, track)}
}

// Service owns the rotation subscriptions and the hourly push.
type Service struct {
	subs     repositories.SubscriptionRepository
	rotation *Rotation
	cfg      Config
}

func NewService(subs repositories.SubscriptionRepository, rotation *Rotation, cfg Config) *Service {
	return &Service{subs: subs, rotation: rotation, cfg: cfg}
}

// Rotation exposes the rotation fetcher for commands that render the
// current tracks directly.
func (s *Service) Rotation() *Rotation {
	return s.rotation
}

// Subscribe registers the user for a commission, optionally restricted to
// one track, and returns the chat reply.
func (s *Service) Subscribe(ctx context.Context, userID, botID, groupID, name, track string) (string, error) {
	if name == "全部" {
		return "禁止订阅全部密函, 请使用[密函列表]命令查看可订阅密函", nil
	}
	keys := subKeys(name, track)

	sub, err := s.subs.Get(ctx, models.TopicMH, userID, botID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.Payload == "" {
		payload := JoinKeys(keys)
		err := s.subs.Upsert(ctx, &models.Subscription{
			Topic:   models.TopicMH,
			BotID:   botID,
			UserID:  userID,
			GroupID: groupID,
			Payload: payload,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("成功订阅密函【%s】", strings.Join(keys, ",")), nil
	}

	old := SplitKeys(sub.Payload)
	if containsAll(old, keys) {
		return fmt.Sprintf("请勿重复订阅密函【%s】", name), nil
	}

	payload := JoinKeys(append(old, keys...))
	if err := s.subs.UpdatePayload(ctx, models.TopicMH, userID, botID, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("成功订阅密函【%s】!当前订阅密函: %s", name, payload), nil
}

// Unsubscribe removes a commission (or everything, for "全部") from the
// user's subscription and returns the chat reply.
func (s *Service) Unsubscribe(ctx context.Context, userID, botID, name, track string) (string, error) {
	sub, err := s.subs.Get(ctx, models.TopicMH, userID, botID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "未曾订阅密函", nil
	}

	if name == "全部" {
		if _, err := s.subs.Delete(ctx, models.TopicMH, userID, botID); err != nil {
			return "", err
		}
		return "成功取消订阅全部密函!", nil
	}
	if sub.Payload == "" {
		return fmt.Sprintf("未曾订阅密函【%s】", name), nil
	}

	drop := make(map[string]bool)
	for _, k := range subKeys(name, track) {
		drop[k] = true
	}
	var kept []string
	for _, k := range SplitKeys(sub.Payload) {
		if !drop[k] {
			kept = append(kept, k)
		}
	}

	payload := JoinKeys(kept)
	if err := s.subs.UpdatePayload(ctx, models.TopicMH, userID, botID, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("成功取消订阅密函【%s】!当前订阅密函: %s", name, payload), nil
}

// SetWindow restricts the user's pushes to the start..end hour range and
// returns the updated description.
func (s *Service) SetWindow(ctx context.Context, userID, botID string, start, end int) (string, error) {
	sub, err := s.subs.Get(ctx, models.TopicMH, userID, botID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.Payload == "" {
		return "未曾订阅密函", nil
	}

	if err := s.subs.UpdateWindow(ctx, models.TopicMH, userID, botID, FormatWindow(start, end)); err != nil {
		return "", err
	}
	return s.Describe(ctx, userID, botID)
}

// Describe renders the user's current subscription as chat text.
func (s *Service) Describe(ctx context.Context, userID, botID string) (string, error) {
	sub, err := s.subs.Get(ctx, models.TopicMH, userID, botID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.Payload == "" {
		return "未曾订阅密函", nil
	}

	lines := []string{fmt.Sprintf("当前订阅密函: %s", sub.Payload)}
	if start, end, ok := ParseWindow(sub.TimeWindow); ok {
		lines = append(lines, fmt.Sprintf("推送时间: %d点-%d点", start, end))
	} else {
		lines = append(lines, "推送时间: 不限制")
		lines = append(lines, "可以使用命令设置推送时间: 订阅密函时间17:23")
	}
	return strings.Join(lines, "\n"), nil
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}
