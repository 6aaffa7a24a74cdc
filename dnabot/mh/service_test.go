package mh

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

// fakeSubRepo keeps subscriptions in memory keyed by topic+user+bot.
type fakeSubRepo struct {
	subs map[string]*models.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[string]*models.Subscription)}
}

func (f *fakeSubRepo) key(topic, userID, botID string) string {
	return topic + "|" + userID + "|" + botID
}

func (f *fakeSubRepo) Get(ctx context.Context, topic, userID, botID string) (*models.Subscription, error) {
	sub, ok := f.subs[f.key(topic, userID, botID)]
	if !ok {
		return nil, nil
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeSubRepo) ListByTopic(ctx context.Context, topic string) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for _, sub := range f.subs {
		if sub.Topic == topic {
			clone := *sub
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) Upsert(ctx context.Context, sub *models.Subscription) error {
	clone := *sub
	f.subs[f.key(sub.Topic, sub.UserID, sub.BotID)] = &clone
	return nil
}

func (f *fakeSubRepo) UpdatePayload(ctx context.Context, topic, userID, botID, payload string) error {
	if sub, ok := f.subs[f.key(topic, userID, botID)]; ok {
		sub.Payload = payload
	}
	return nil
}

func (f *fakeSubRepo) UpdateWindow(ctx context.Context, topic, userID, botID, window string) error {
	if sub, ok := f.subs[f.key(topic, userID, botID)]; ok {
		sub.TimeWindow = window
	}
	return nil
}

func (f *fakeSubRepo) Delete(ctx context.Context, topic, userID, botID string) (int64, error) {
	k := f.key(topic, userID, botID)
	if _, ok := f.subs[k]; !ok {
		return 0, nil
	}
	delete(f.subs, k)
	return 1, nil
}

func Test_keyCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{name: "Dedup", keys: []string{"a", "b", "a"}, want: []string{"a", "b"}},
		{name: "DropEmpty", keys: []string{"", "a"}, want: []string{"a"}},
		{name: "Empty", keys: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitKeys(JoinKeys(tt.keys))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_ParseWindow(t *testing.T) {
	tests := []struct {
		name      string
		window    string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{name: "Valid", window: "17:23", wantStart: 17, wantEnd: 23, wantOK: true},
		{name: "FullDay", window: "0:23", wantStart: 0, wantEnd: 23, wantOK: true},
		{name: "Reversed", window: "23:17", wantOK: false},
		{name: "OutOfRange", window: "17:25", wantOK: false},
		{name: "Garbage", window: "abc", wantOK: false},
		{name: "Empty", window: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ParseWindow(tt.window)
			if ok != tt.wantOK {
				t.Fatalf("ParseWindow(%q) ok = %v, want %v", tt.window, ok, tt.wantOK)
			}
			if ok && (start != tt.wantStart || end != tt.wantEnd) {
				t.Errorf("ParseWindow(%q) = %d,%d, want %d,%d", tt.window, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func testMHService(repo *fakeSubRepo) *Service {
	return NewService(repo, nil, DefaultConfig())
}

func Test_service_Subscribe(t *testing.T) {
	repo := newFakeSubRepo()
	s := testMHService(repo)
	ctx := context.Background()

	msg, err := s.Subscribe(ctx, "u1", "bot", "", "拆解", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "成功订阅") {
		t.Errorf("first subscribe msg = %q", msg)
	}

	sub, _ := repo.Get(ctx, models.TopicMH, "u1", "bot")
	want := "角色:拆解,武器:拆解,魔之楔:拆解"
	if sub.Payload != want {
		t.Errorf("payload = %q, want %q", sub.Payload, want)
	}

	// Same commission again is a duplicate.
	msg, err = s.Subscribe(ctx, "u1", "bot", "", "拆解", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "请勿重复订阅") {
		t.Errorf("duplicate subscribe msg = %q", msg)
	}

	// A track-scoped addition extends the payload.
	msg, err = s.Subscribe(ctx, "u1", "bot", "", "勘探", "角色")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "角色:勘探") {
		t.Errorf("extend subscribe msg = %q", msg)
	}

	msg, err = s.Subscribe(ctx, "u1", "bot", "", "全部", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "禁止订阅全部密函") {
		t.Errorf("subscribe all msg = %q", msg)
	}
}

func Test_service_Unsubscribe(t *testing.T) {
	repo := newFakeSubRepo()
	s := testMHService(repo)
	ctx := context.Background()

	if msg, _ := s.Unsubscribe(ctx, "u1", "bot", "拆解", ""); msg != "未曾订阅密函" {
		t.Errorf("unsubscribe without subscription msg = %q", msg)
	}

	if _, err := s.Subscribe(ctx, "u1", "bot", "", "拆解", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Subscribe(ctx, "u1", "bot", "", "勘探", "角色"); err != nil {
		t.Fatal(err)
	}

	msg, err := s.Unsubscribe(ctx, "u1", "bot", "拆解", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "成功取消订阅密函【拆解】") {
		t.Errorf("unsubscribe msg = %q", msg)
	}
	sub, _ := repo.Get(ctx, models.TopicMH, "u1", "bot")
	if sub.Payload != "角色:勘探" {
		t.Errorf("payload after unsubscribe = %q", sub.Payload)
	}

	msg, err = s.Unsubscribe(ctx, "u1", "bot", "全部", "")
	if err != nil {
		t.Fatal(err)
	}
	if msg != "成功取消订阅全部密函!" {
		t.Errorf("unsubscribe all msg = %q", msg)
	}
	if sub, _ := repo.Get(ctx, models.TopicMH, "u1", "bot"); sub != nil {
		t.Error("subscription survived unsubscribe all")
	}
}

func Test_service_SetWindow(t *testing.T) {
	repo := newFakeSubRepo()
	s := testMHService(repo)
	ctx := context.Background()

	if msg, _ := s.SetWindow(ctx, "u1", "bot", 17, 23); msg != "未曾订阅密函" {
		t.Errorf("window without subscription msg = %q", msg)
	}

	if _, err := s.Subscribe(ctx, "u1", "bot", "", "拆解", ""); err != nil {
		t.Fatal(err)
	}
	msg, err := s.SetWindow(ctx, "u1", "bot", 17, 23)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "推送时间: 17点-23点") {
		t.Errorf("window msg = %q", msg)
	}
}

func rotationTracks() []dnaapi.RotationTrack {
	return dnaapi.NormalizeTracks([]dnaapi.RotationTrack{
		{Instances: []dnaapi.RotationInstance{{ID: 1, Name: "拆解"}, {ID: 2, Name: "勘探/无尽"}}},
		{Instances: []dnaapi.RotationInstance{{ID: 3, Name: "追缉"}}},
		{Instances: []dnaapi.RotationInstance{{ID: 4, Name: "拆解"}}},
	})
}

func Test_service_buildPush(t *testing.T) {
	s := testMHService(newFakeSubRepo())
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

	subs := []*models.Subscription{
		{Topic: models.TopicMH, UserID: "u1", BotID: "bot", Payload: "角色:拆解,武器:勘探"},
		{Topic: models.TopicMH, UserID: "u2", BotID: "bot", GroupID: "g1", Payload: "拆解"},
		{Topic: models.TopicMH, UserID: "u3", BotID: "bot", GroupID: "g1", Payload: "拆解", TimeWindow: "20:23"},
		{Topic: models.TopicMH, UserID: "u4", BotID: "bot", Payload: "护送"},
	}

	report := s.buildPush(rotationTracks(), subs, now)

	// u1 matches 角色:拆解 only; 武器:勘探 is not in this rotation.
	lines := report.Private["u1"]
	if len(lines) != 2 || lines[0] != "当前订阅密函已刷新:" || lines[1] != "角色 : 拆解" {
		t.Errorf("u1 lines = %v", lines)
	}

	// u4 subscribed something not rotating; no push at all.
	if _, ok := report.Private["u4"]; ok {
		t.Error("u4 pushed despite no match")
	}

	// g1 aggregates u2 (bare key matches both role and mzx tracks); u3 is
	// outside its push window.
	group := report.Groups["g1"]
	if group == nil {
		t.Fatal("group push missing")
	}
	wantTexts := []string{"角色 : 拆解", "魔之楔 : 拆解"}
	if len(group.Lines) != len(wantTexts) {
		t.Fatalf("group lines = %+v", group.Lines)
	}
	for i, text := range wantTexts {
		if group.Lines[i].Text != text {
			t.Errorf("group line %d = %q, want %q", i, group.Lines[i].Text, text)
		}
		if !reflect.DeepEqual(group.Lines[i].UserIDs, []string{"u2"}) {
			t.Errorf("group line %d users = %v", i, group.Lines[i].UserIDs)
		}
	}
}

func Test_service_buildPush_WindowCoversNow(t *testing.T) {
	s := testMHService(newFakeSubRepo())
	now := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)

	subs := []*models.Subscription{
		{Topic: models.TopicMH, UserID: "u1", BotID: "bot", Payload: "拆解", TimeWindow: "20:23"},
	}
	report := s.buildPush(rotationTracks(), subs, now)
	if _, ok := report.Private["u1"]; !ok {
		t.Error("push suppressed inside the configured window")
	}
}
