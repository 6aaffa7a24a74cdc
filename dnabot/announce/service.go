package announce

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

const expireAfter = 86400 // seconds; older announcements are not pushed

// Config controls the announcement feed watcher.
type Config struct {
	Enabled     bool `toml:"enabled"`
	PollMinutes int  `toml:"poll_minutes"`
}

func DefaultConfig() Config {
	return Config{Enabled: true, PollMinutes: 10}
}

// API is the slice of the upstream client the announcement service uses.
type API interface {
	AnnList(ctx context.Context, useCache bool) ([]dnaapi.Post, error)
	PostDetail(ctx context.Context, postID, token, devCode string) *dnaapi.Envelope
}

// Mirror re-hosts vendor image URLs. Optional; with a nil mirror the
// original URLs are pushed as-is.
type Mirror interface {
	MirrorImage(ctx context.Context, srcURL string) (string, error)
}

// Announcement is one rendered feed entry: the text blocks and the image
// URLs of the post body, in original order.
type Announcement struct {
	ID     string
	Title  string
	Time   string
	Texts  []string
	Images []string
}

// Lines renders the announcement as message lines, image URLs last.
func (a *Announcement) Lines() []string {
	lines := []string{fmt.Sprintf("【%s】", a.Title)}
	lines = append(lines, a.Texts...)
	lines = append(lines, a.Images...)
	return lines
}

type Service struct {
	api    API
	subs   repositories.SubscriptionRepository
	mirror Mirror
	cfg    Config
	seen   *seenStore
	now    func() time.Time
}

// NewService builds the announcement service. dataDir holds the seen-id
// state file; mirror may be nil.
func NewService(api API, subs repositories.SubscriptionRepository, mirror Mirror, cfg Config, dataDir string) *Service {
	return &Service{
		api:    api,
		subs:   subs,
		mirror: mirror,
		cfg:    cfg,
		seen:   newSeenStore(dataDir),
		now:    time.Now,
	}
}

// List returns the current feed as one id-per-line message.
func (s *Service) List(ctx context.Context) (string, error) {
	posts, err := s.api.AnnList(ctx, false)
	if err != nil || len(posts) == 0 {
		return "获取公告列表失败", nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.PostID)
	}
	return "公告列表: \n" + strings.Join(ids, "\n"), nil
}

// Detail fetches one announcement body. The second return is a user-facing
// refusal ("未找到该公告", "该公告已过期"); exactly one of the three returns
// is meaningful.
func (s *Service) Detail(ctx context.Context, postID string, checkTime bool) (*Announcement, string, error) {
	posts, err := s.api.AnnList(ctx, true)
	if err != nil {
		return nil, "", fmt.Errorf("获取游戏公告失败,请检查接口是否正常: %w", err)
	}
	var listed bool
	for _, p := range posts {
		if p.PostID == postID {
			listed = true
			break
		}
	}
	if !listed {
		return nil, "未找到该公告", nil
	}

	env := s.api.PostDetail(ctx, postID, "", dnaapi.DevCode())
	if !env.IsSuccess() {
		return nil, "未找到该公告", nil
	}
	var res dnaapi.PostDetailResult
	if err := env.Decode(&res); err != nil {
		return nil, "未找到该公告", nil
	}
	detail := res.PostDetail

	if checkTime {
		posted := ParsePostTime(detail.PostTime, s.now())
		if posted != 0 && posted < s.now().Unix()-expireAfter {
			return nil, "该公告已过期", nil
		}
	}
	if len(detail.PostContent) == 0 {
		return nil, "未找到该公告", nil
	}

	ann := &Announcement{ID: postID, Title: detail.PostTitle, Time: detail.PostTime}
	for _, block := range detail.PostContent {
		switch block.ContentType {
		case dnaapi.ContentText:
			if text := normalizeContent(block.Content); text != "" {
				ann.Texts = append(ann.Texts, text)
			}
		case dnaapi.ContentImage:
			if imageURL(block.URL) {
				ann.Images = append(ann.Images, s.mirrorURL(ctx, block.URL))
			}
		case dnaapi.ContentVideo:
			if block.ContentVideo != nil && imageURL(block.ContentVideo.CoverURL) {
				ann.Images = append(ann.Images, s.mirrorURL(ctx, block.ContentVideo.CoverURL))
			}
		}
	}
	return ann, "", nil
}

// Subscribe registers a group for feed pushes. One subscription per group.
func (s *Service) Subscribe(ctx context.Context, userID, botID, groupID string) (string, error) {
	if !s.cfg.Enabled {
		return "二重螺旋公告推送功能已关闭", nil
	}
	if groupID == "" {
		return "请在群聊中订阅", nil
	}

	subs, err := s.subs.ListByTopic(ctx, models.TopicAnnounce)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if sub.GroupID == groupID {
			return "已经订阅了二重螺旋公告！", nil
		}
	}

	err = s.subs.Upsert(ctx, &models.Subscription{
		Topic:   models.TopicAnnounce,
		BotID:   botID,
		UserID:  userID,
		GroupID: groupID,
	})
	if err != nil {
		return "", err
	}
	return "成功订阅二重螺旋公告!", nil
}

func (s *Service) Unsubscribe(ctx context.Context, groupID string) (string, error) {
	if groupID == "" {
		return "请在群聊中取消订阅", nil
	}

	subs, err := s.subs.ListByTopic(ctx, models.TopicAnnounce)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if sub.GroupID == groupID {
			if _, err := s.subs.Delete(ctx, models.TopicAnnounce, sub.UserID, sub.BotID); err != nil {
				return "", err
			}
			return "成功取消订阅二重螺旋公告!", nil
		}
	}
	if !s.cfg.Enabled {
		return "二重螺旋公告推送功能已关闭", nil
	}
	return "未曾订阅二重螺旋公告！", nil
}

// Digest is one poll's worth of fresh announcements for every subscribed
// group.
type Digest struct {
	Groups        map[string][]*Announcement
	Announcements []*Announcement
}

func (d *Digest) Empty() bool {
	return d == nil || len(d.Announcements) == 0 || len(d.Groups) == 0
}

// Poll diffs the feed against the seen ids and returns what to push. The
// first poll only primes the seen state.
func (s *Service) Poll(ctx context.Context) (*Digest, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}
	subs, err := s.subs.ListByTopic(ctx, models.TopicAnnounce)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		slog.Info("announcement poll skipped, no subscribers", slog.String("type", "sys"))
		return nil, nil
	}

	posts, err := s.api.AnnList(ctx, false)
	if err != nil {
		return nil, err
	}
	fresh := make([]string, 0, len(posts))
	for _, p := range posts {
		fresh = append(fresh, p.PostID)
	}

	known := s.seen.Load()
	if len(known) == 0 {
		if err := s.seen.Save(fresh); err != nil {
			return nil, err
		}
		slog.Info("announcement state primed", slog.String("type", "sys"), slog.Int("ids", len(fresh)))
		return nil, nil
	}

	knownSet := make(map[string]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}
	var pending []string
	for _, id := range fresh {
		if !knownSet[id] {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	if err := s.seen.Save(mergeSeen(known, fresh)); err != nil {
		return nil, err
	}
	slog.Info("new announcements found", slog.String("type", "sys"), slog.Any("ids", pending))

	digest := &Digest{Groups: make(map[string][]*Announcement)}
	for _, id := range pending {
		ann, refusal, err := s.Detail(ctx, id, true)
		if err != nil {
			slog.Error("announcement detail failed",
				slog.String("type", "sys"),
				slog.String("post_id", id),
				slog.Any("error", err))
			continue
		}
		if refusal != "" {
			continue
		}
		digest.Announcements = append(digest.Announcements, ann)
	}
	if len(digest.Announcements) == 0 {
		return nil, nil
	}
	for _, sub := range subs {
		if sub.GroupID == "" {
			continue
		}
		digest.Groups[sub.GroupID] = digest.Announcements
	}
	return digest, nil
}

func (s *Service) mirrorURL(ctx context.Context, srcURL string) string {
	if s.mirror == nil {
		return srcURL
	}
	mirrored, err := s.mirror.MirrorImage(ctx, srcURL)
	if err != nil {
		slog.Warn("image mirror failed, using source url",
			slog.String("type", "sys"),
			slog.String("url", srcURL),
			slog.Any("error", err))
		return srcURL
	}
	return mirrored
}

var brRe = regexp.MustCompile(`(?i)<br\s*/?>`)

func normalizeContent(content string) string {
	text := html.UnescapeString(content)
	text = brRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(text)
}

func imageURL(u string) bool {
	return strings.HasSuffix(u, "jpg") || strings.HasSuffix(u, "png") || strings.HasSuffix(u, "jpeg")
}
