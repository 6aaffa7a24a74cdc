package signin

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

// errorLimit aborts a paged community task after this many failed calls.
const errorLimit = 3

// API is the slice of the upstream client the signin run needs.
type API interface {
	LoginLog(ctx context.Context, token, devCode string) *dnaapi.Envelope
	SignCalendar(ctx context.Context, token, devCode string) *dnaapi.Envelope
	GameSign(ctx context.Context, token string, dayAwardID, periodID int, devCode string) *dnaapi.Envelope
	BBSSign(ctx context.Context, token, devCode string) *dnaapi.Envelope
	TaskProcess(ctx context.Context, token, devCode string) *dnaapi.Envelope
	PostList(ctx context.Context, token, devCode string) *dnaapi.Envelope
	PostDetail(ctx context.Context, postID, token, devCode string) *dnaapi.Envelope
	LikePost(ctx context.Context, token string, post dnaapi.Post, devCode string) *dnaapi.Envelope
	SharePost(ctx context.Context, token, devCode string) *dnaapi.Envelope
	ReplyPost(ctx context.Context, token string, post dnaapi.Post, content, devCode string) *dnaapi.Envelope
}

// Service drives the per-account daily signin state machine.
type Service struct {
	api     API
	signs   repositories.SignRepository
	cfg     Config
	replies *ReplyTemplates

	// sleep throttles mutating calls; tests replace it with a noop.
	sleep func(ctx context.Context, minSec, maxSec float64)
	now   func() time.Time
}

func NewService(api API, signs repositories.SignRepository, cfg Config, replies *ReplyTemplates) *Service {
	if replies == nil {
		replies = LoadReplyTemplates("")
	}
	return &Service{
		api:     api,
		signs:   signs,
		cfg:     cfg,
		replies: replies,
		sleep:   randomSleep,
		now:     time.Now,
	}
}

func randomSleep(ctx context.Context, minSec, maxSec float64) {
	d := time.Duration((minSec + rand.Float64()*(maxSec-minSec)) * float64(time.Second))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Result is the outcome of one account's run.
type Result struct {
	UID      string
	Expired  bool
	Game     Status
	BBS      Status
	Tasks    map[dnaapi.TaskKind]Status
	ErrorMsg string
}

// Report renders the result the way the chat reply shows it.
func (r *Result) Report(enabled []dnaapi.TaskKind) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("UID: %s", r.UID))
	if r.Expired {
		lines = append(lines, fmt.Sprintf("失效UID: %s", r.UID))
		return strings.Join(lines, "\n")
	}
	if r.Game != StatusForbidden {
		lines = append(lines, fmt.Sprintf("签到状态: %s", r.Game.Label()))
	}
	if r.BBS != StatusForbidden {
		if r.BBS == StatusSkipped {
			lines = append(lines, fmt.Sprintf("社区签到: %s", r.BBS.Label()))
		} else {
			lines = append(lines, "社区任务:")
			labels := map[dnaapi.TaskKind]string{
				dnaapi.TaskBBSSign:   "签到",
				dnaapi.TaskBBSDetail: "浏览",
				dnaapi.TaskBBSLike:   "点赞",
				dnaapi.TaskBBSShare:  "分享",
				dnaapi.TaskBBSReply:  "回复",
			}
			for _, kind := range enabled {
				lines = append(lines, fmt.Sprintf("%s: %s", labels[kind], r.Tasks[kind].Label()))
			}
		}
	}
	if r.ErrorMsg != "" {
		lines = append(lines, fmt.Sprintf("错误信息: %s", r.ErrorMsg))
	}
	lines = append(lines, "-----------------------------")
	return strings.Join(lines, "\n")
}

// run carries the state of one account's pass through the machine.
type run struct {
	svc     *Service
	uid     string
	token   string
	devCode string

	record *models.SignRecord
	result *Result

	// posts is the shared shuffled listing for detail/like/reply, fetched
	// at most once per run.
	posts       []dnaapi.Post
	postsLoaded bool
}

// Run executes the full state machine for one stored account and persists
// whatever progress was made. The returned error is reserved for storage
// failures; upstream failures land in the result.
func (s *Service) Run(ctx context.Context, account *models.Account) (*Result, error) {
	result := &Result{
		UID:   account.UID,
		Tasks: make(map[dnaapi.TaskKind]Status),
	}
	if !s.cfg.GameSign {
		result.Game = StatusForbidden
	}
	if !s.cfg.BBSSign {
		result.BBS = StatusForbidden
	}

	if account.Cookie == "" || !account.Valid() {
		result.Expired = true
		return result, nil
	}

	r := &run{
		svc:     s,
		uid:     account.UID,
		token:   account.Cookie,
		devCode: account.DevCode,
		result:  result,
	}

	settled, err := r.checkStatus(ctx)
	if err != nil {
		return nil, err
	}
	if settled {
		return result, nil
	}

	if !s.api.LoginLog(ctx, r.token, r.devCode).IsSuccess() {
		result.Expired = true
		return result, nil
	}

	r.doSign(ctx)
	r.doBBSSign(ctx)

	if err := s.signs.Upsert(ctx, r.record); err != nil {
		return nil, err
	}
	return result, nil
}

// checkStatus loads (or creates) today's record and settles steps that are
// already complete. Returns true when nothing is left to do.
func (r *run) checkStatus(ctx context.Context) (bool, error) {
	date := r.svc.now().Format("2006-01-02")
	record, err := r.svc.signs.Get(ctx, r.uid, date)
	if err != nil {
		return false, err
	}
	if record == nil {
		r.record = models.NewSignRecord(r.uid, date)
		return false, nil
	}
	r.record = record

	if record.GameSignComplete() && r.result.Game == StatusPending {
		r.result.Game = StatusSkipped
	}
	if record.BBSComplete(r.svc.cfg.EnabledTaskNames()) && r.result.BBS == StatusPending {
		r.result.BBS = StatusSkipped
	}
	return r.result.Game.Settled() && r.result.BBS.Settled(), nil
}

// doSign performs the in-game calendar signin.
func (r *run) doSign(ctx context.Context) {
	if r.result.Game.Settled() {
		return
	}
	if r.record.GameSignComplete() {
		return
	}

	env := r.svc.api.SignCalendar(ctx, r.token, r.devCode)
	if !env.IsSuccess() {
		return
	}
	var calendar dnaapi.CalendarSignResult
	if err := env.Decode(&calendar); err != nil {
		return
	}

	if calendar.TodaySignin {
		r.result.Game = StatusSkipped
		r.record.GameSign = models.TargetGameSign
		return
	}
	if calendar.SigninTime < 0 || calendar.SigninTime >= len(calendar.DayAward) {
		r.result.Game = StatusFailed
		return
	}
	award := calendar.DayAward[calendar.SigninTime]

	env = r.svc.api.GameSign(ctx, r.token, award.ID, award.PeriodID, r.devCode)
	switch {
	case env.IsSuccess():
		r.result.Game = StatusDone
		r.record.GameSign = models.TargetGameSign
	case env.Code == dnaapi.CodeAlreadySigned:
		r.result.Game = StatusSkipped
		r.record.GameSign = models.TargetGameSign
	default:
		r.result.Game = StatusFailed
	}

	r.svc.sleep(ctx, 0, 1)
}

// doBBSSign walks today's community task list and dispatches each enabled,
// unfinished kind to its handler.
func (r *run) doBBSSign(ctx context.Context) {
	if r.result.BBS.Settled() {
		return
	}

	env := r.svc.api.TaskProcess(ctx, r.token, r.devCode)
	if !env.IsSuccess() {
		return
	}
	var progress dnaapi.TaskProcessResult
	if err := env.Decode(&progress); err != nil {
		return
	}

	for _, task := range progress.DailyTask {
		kind := task.Kind()
		if kind == "" {
			slog.Warn("Community task without recognizable kind",
				slog.String("type", "cmd"),
				slog.String("uid", r.uid),
				slog.String("remark", task.Remark),
			)
			continue
		}
		if !r.svc.cfg.TaskEnabled(kind) {
			continue
		}
		if task.CompleteTimes >= task.Times {
			r.record.SetCounter(string(kind), task.Times)
			r.result.Tasks[kind] = StatusSkipped
			continue
		}

		if kind == dnaapi.TaskBBSSign {
			r.bbsSign(ctx)
			continue
		}

		posts := r.postList(ctx)
		if posts == nil {
			continue
		}
		if len(posts) == 0 {
			r.result.ErrorMsg = "❌ 社区任务：帖子列表为空"
			return
		}

		switch kind {
		case dnaapi.TaskBBSDetail:
			r.bbsDetail(ctx, task, posts)
		case dnaapi.TaskBBSLike:
			r.bbsLike(ctx, task, posts)
		case dnaapi.TaskBBSShare:
			r.bbsShare(ctx)
		case dnaapi.TaskBBSReply:
			r.bbsReply(ctx, task, posts)
		}
		if r.result.ErrorMsg != "" {
			return
		}
	}

	if r.record.BBSComplete(r.svc.cfg.EnabledTaskNames()) {
		r.result.BBS = StatusDone
	}
}

// postList fetches and shuffles the shared listing on first use. nil means
// the fetch itself failed, as opposed to an empty listing.
func (r *run) postList(ctx context.Context) []dnaapi.Post {
	if r.postsLoaded {
		return r.posts
	}
	env := r.svc.api.PostList(ctx, r.token, r.devCode)
	if !env.IsSuccess() {
		return nil
	}
	var listing dnaapi.PostListResult
	if err := env.Decode(&listing); err != nil {
		return nil
	}
	r.postsLoaded = true
	r.posts = listing.PostList
	rand.Shuffle(len(r.posts), func(i, j int) {
		r.posts[i], r.posts[j] = r.posts[j], r.posts[i]
	})
	return r.posts
}

func (r *run) bbsSign(ctx context.Context) {
	kind := dnaapi.TaskBBSSign
	if r.record.Counter(string(kind)) >= models.TargetBBSSign {
		r.result.Tasks[kind] = StatusSkipped
		return
	}

	env := r.svc.api.BBSSign(ctx, r.token, r.devCode)
	switch {
	case env.IsSuccess(), env.Code == dnaapi.CodeBBSDone:
		r.record.SetCounter(string(kind), models.TargetBBSSign)
		r.result.Tasks[kind] = StatusDone
	default:
		r.result.Tasks[kind] = StatusFailed
	}

	r.svc.sleep(ctx, 0, 1)
}

// pagedTask runs one action per shuffled post until the counter meets the
// upstream-reported target or too many calls fail. Partial progress stays in
// the record.
func (r *run) pagedTask(
	ctx context.Context,
	kind dnaapi.TaskKind,
	task dnaapi.BBSTask,
	posts []dnaapi.Post,
	action func(ctx context.Context, post dnaapi.Post) *dnaapi.Envelope,
	failMsg string,
	sleepShift float64,
) {
	if r.record.Counter(string(kind)) >= models.Target(string(kind)) {
		r.result.Tasks[kind] = StatusSkipped
		return
	}
	if task.Times-task.CompleteTimes <= 0 {
		r.result.Tasks[kind] = StatusSkipped
		return
	}

	errors := 0
	for _, post := range posts {
		if post.PostID == "" {
			continue
		}
		if action(ctx, post).IsSuccess() {
			r.record.AddCounter(string(kind))
		} else {
			errors++
			if errors >= errorLimit {
				r.result.ErrorMsg = failMsg
				return
			}
		}

		if r.record.Counter(string(kind)) >= task.Times {
			break
		}
		r.svc.sleep(ctx, sleepShift, sleepShift+1)
	}

	if r.record.Counter(string(kind)) >= task.Times {
		r.result.Tasks[kind] = StatusDone
	}
}

func (r *run) bbsDetail(ctx context.Context, task dnaapi.BBSTask, posts []dnaapi.Post) {
	r.pagedTask(ctx, dnaapi.TaskBBSDetail, task, posts,
		func(ctx context.Context, post dnaapi.Post) *dnaapi.Envelope {
			return r.svc.api.PostDetail(ctx, post.PostID, r.token, r.devCode)
		},
		"❌ 社区任务：浏览帖子失败次数过多，请稍后重试", 0)
}

func (r *run) bbsLike(ctx context.Context, task dnaapi.BBSTask, posts []dnaapi.Post) {
	r.pagedTask(ctx, dnaapi.TaskBBSLike, task, posts,
		func(ctx context.Context, post dnaapi.Post) *dnaapi.Envelope {
			return r.svc.api.LikePost(ctx, r.token, post, r.devCode)
		},
		"❌ 社区任务：帖子点赞失败次数过多，请稍后重试", 0)
}

func (r *run) bbsReply(ctx context.Context, task dnaapi.BBSTask, posts []dnaapi.Post) {
	r.pagedTask(ctx, dnaapi.TaskBBSReply, task, posts,
		func(ctx context.Context, post dnaapi.Post) *dnaapi.Envelope {
			return r.svc.api.ReplyPost(ctx, r.token, post, r.svc.replies.Random(), r.devCode)
		},
		"❌ 社区任务：帖子回复失败次数过多，请稍后重试", 1)
}

func (r *run) bbsShare(ctx context.Context) {
	kind := dnaapi.TaskBBSShare
	if r.record.Counter(string(kind)) >= models.TargetBBSShare {
		r.result.Tasks[kind] = StatusSkipped
		return
	}

	if r.svc.api.SharePost(ctx, r.token, r.devCode).IsSuccess() {
		r.record.AddCounter(string(kind))
	}
	if r.record.Counter(string(kind)) >= models.TargetBBSShare {
		r.result.Tasks[kind] = StatusDone
	}
}
