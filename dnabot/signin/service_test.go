package signin

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

// fakeAPI scripts upstream responses per endpoint and counts calls.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	loginLog    *dnaapi.Envelope
	calendar    *dnaapi.Envelope
	gameSign    *dnaapi.Envelope
	bbsSign     *dnaapi.Envelope
	taskProcess *dnaapi.Envelope
	postList    *dnaapi.Envelope
	postDetail  *dnaapi.Envelope
	likePost    *dnaapi.Envelope
	sharePost   *dnaapi.Envelope
	replyPost   *dnaapi.Envelope
}

func newFakeAPI() *fakeAPI {
	ok := dnaapi.OKEnvelope(map[string]any{})
	return &fakeAPI{
		calls:       make(map[string]int),
		loginLog:    ok,
		calendar:    ok,
		gameSign:    ok,
		bbsSign:     ok,
		taskProcess: dnaapi.OKEnvelope(dnaapi.TaskProcessResult{}),
		postList:    dnaapi.OKEnvelope(dnaapi.PostListResult{}),
		postDetail:  ok,
		likePost:    ok,
		sharePost:   ok,
		replyPost:   ok,
	}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) LoginLog(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("loginLog")
	return f.loginLog
}

func (f *fakeAPI) SignCalendar(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("calendar")
	return f.calendar
}

func (f *fakeAPI) GameSign(ctx context.Context, token string, dayAwardID, periodID int, devCode string) *dnaapi.Envelope {
	f.record("gameSign")
	return f.gameSign
}

func (f *fakeAPI) BBSSign(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("bbsSign")
	return f.bbsSign
}

func (f *fakeAPI) TaskProcess(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("taskProcess")
	return f.taskProcess
}

func (f *fakeAPI) PostList(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("postList")
	return f.postList
}

func (f *fakeAPI) PostDetail(ctx context.Context, postID, token, devCode string) *dnaapi.Envelope {
	f.record("postDetail")
	return f.postDetail
}

func (f *fakeAPI) LikePost(ctx context.Context, token string, post dnaapi.Post, devCode string) *dnaapi.Envelope {
	f.record("likePost")
	return f.likePost
}

func (f *fakeAPI) SharePost(ctx context.Context, token, devCode string) *dnaapi.Envelope {
	f.record("sharePost")
	return f.sharePost
}

func (f *fakeAPI) ReplyPost(ctx context.Context, token string, post dnaapi.Post, content, devCode string) *dnaapi.Envelope {
	f.record("replyPost")
	return f.replyPost
}

// fakeSignRepo keeps records in memory keyed by uid+date.
type fakeSignRepo struct {
	mu      sync.Mutex
	records map[string]*models.SignRecord
}

func newFakeSignRepo() *fakeSignRepo {
	return &fakeSignRepo{records: make(map[string]*models.SignRecord)}
}

func (f *fakeSignRepo) key(uid, date string) string { return uid + "|" + date }

func (f *fakeSignRepo) Get(ctx context.Context, uid, date string) (*models.SignRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[f.key(uid, date)]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (f *fakeSignRepo) Upsert(ctx context.Context, record *models.SignRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *record
	f.records[f.key(record.UID, record.Date)] = &clone
	return nil
}

func (f *fakeSignRepo) ListByDate(ctx context.Context, date string) ([]*models.SignRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SignRecord
	for _, record := range f.records {
		if record.Date == date {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeSignRepo) PurgeBefore(ctx context.Context, date string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for k, record := range f.records {
		if record.Date <= date {
			delete(f.records, k)
			purged++
		}
	}
	return purged, nil
}

func testService(api *fakeAPI, repo *fakeSignRepo, cfg Config) *Service {
	svc := NewService(api, repo, cfg, nil)
	svc.sleep = func(context.Context, float64, float64) {}
	return svc
}

func testAccount(uid string) *models.Account {
	return &models.Account{
		UID:     uid,
		UserID:  "user-" + uid,
		BotID:   "bot",
		Cookie:  "token-" + uid,
		DevCode: "DEV",
	}
}

func calendarEnvelope(todaySignin bool) *dnaapi.Envelope {
	return dnaapi.OKEnvelope(dnaapi.CalendarSignResult{
		TodaySignin: todaySignin,
		SigninTime:  0,
		DayAward:    []dnaapi.DayAward{{ID: 11, PeriodID: 3}},
	})
}

func Test_service_Run_FirstSignOfDay(t *testing.T) {
	api := newFakeAPI()
	api.calendar = calendarEnvelope(false)
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.BBSSign = false
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}

	if result.Game != StatusDone {
		t.Errorf("game status = %v, want done", result.Game)
	}
	if api.calls["gameSign"] != 1 {
		t.Errorf("gameSign called %d times, want 1", api.calls["gameSign"])
	}

	record, _ := repo.Get(context.Background(), "1000000000001", svc.now().Format("2006-01-02"))
	if record == nil {
		t.Fatal("no record persisted")
	}
	if record.GameSign != models.TargetGameSign {
		t.Errorf("game_sign counter = %d, want %d", record.GameSign, models.TargetGameSign)
	}
}

func Test_service_Run_SecondSignSameDay(t *testing.T) {
	api := newFakeAPI()
	api.calendar = calendarEnvelope(false)
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.BBSSign = false
	svc := testService(api, repo, cfg)
	ctx := context.Background()
	account := testAccount("1000000000001")

	if _, err := svc.Run(ctx, account); err != nil {
		t.Fatal(err)
	}

	// Second run the same day settles from the stored record without any
	// network call.
	result, err := svc.Run(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if result.Game != StatusSkipped {
		t.Errorf("second run game status = %v, want skipped", result.Game)
	}
	if api.calls["gameSign"] != 1 {
		t.Errorf("gameSign called %d times total, want 1", api.calls["gameSign"])
	}
	if api.calls["calendar"] != 1 {
		t.Errorf("calendar called %d times total, want 1", api.calls["calendar"])
	}
}

func Test_service_Run_CalendarAlreadySigned(t *testing.T) {
	api := newFakeAPI()
	api.calendar = calendarEnvelope(true)
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.BBSSign = false
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Game != StatusSkipped {
		t.Errorf("game status = %v, want skipped", result.Game)
	}
	if api.calls["gameSign"] != 0 {
		t.Errorf("gameSign called %d times, want 0", api.calls["gameSign"])
	}
}

func Test_service_Run_AlreadySignedCode(t *testing.T) {
	api := newFakeAPI()
	api.calendar = calendarEnvelope(false)
	api.gameSign = &dnaapi.Envelope{Code: dnaapi.CodeAlreadySigned, Msg: "已签到"}
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.BBSSign = false
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Game != StatusSkipped {
		t.Errorf("game status = %v, want skipped", result.Game)
	}
}

func Test_service_Run_ExpiredCredential(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
	}{
		{name: "EmptyCookie", account: &models.Account{UID: "1", UserID: "u", BotID: "b"}},
		{name: "FlaggedInvalid", account: &models.Account{UID: "1", UserID: "u", BotID: "b", Cookie: "t", Status: models.StatusInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			svc := testService(api, newFakeSignRepo(), DefaultConfig())

			result, err := svc.Run(context.Background(), tt.account)
			if err != nil {
				t.Fatal(err)
			}
			if !result.Expired {
				t.Error("expected expired result")
			}
			if api.calls["loginLog"] != 0 {
				t.Error("expired credential still probed upstream")
			}
		})
	}
}

func Test_service_Run_TokenProbeFails(t *testing.T) {
	api := newFakeAPI()
	api.loginLog = dnaapi.ErrEnvelope("expired")
	svc := testService(api, newFakeSignRepo(), DefaultConfig())

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Expired {
		t.Error("expected expired result after failed probe")
	}
	if api.calls["calendar"] != 0 {
		t.Error("run continued past failed probe")
	}
}

func taskProcessEnvelope(tasks ...dnaapi.BBSTask) *dnaapi.Envelope {
	return dnaapi.OKEnvelope(dnaapi.TaskProcessResult{DailyTask: tasks})
}

func postListEnvelope(n int) *dnaapi.Envelope {
	posts := make([]dnaapi.Post, n)
	for i := range posts {
		posts[i] = dnaapi.Post{PostID: fmt.Sprintf("p%d", i)}
	}
	return dnaapi.OKEnvelope(dnaapi.PostListResult{PostList: posts})
}

func Test_service_Run_CommunityTasks(t *testing.T) {
	api := newFakeAPI()
	api.taskProcess = taskProcessEnvelope(
		dnaapi.BBSTask{Remark: "社区签到", Times: 1},
		dnaapi.BBSTask{Remark: "浏览帖子", Times: 3},
		dnaapi.BBSTask{Remark: "点赞帖子", Times: 5},
		dnaapi.BBSTask{Remark: "分享帖子", Times: 1},
		dnaapi.BBSTask{Remark: "回复帖子", Times: 1},
	)
	api.postList = postListEnvelope(10)
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.GameSign = false
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}

	if result.BBS != StatusDone {
		t.Errorf("bbs status = %v, want done (tasks %v, err %q)", result.BBS, result.Tasks, result.ErrorMsg)
	}
	for _, kind := range dnaapi.AllTaskKinds {
		if result.Tasks[kind] != StatusDone {
			t.Errorf("task %s status = %v, want done", kind, result.Tasks[kind])
		}
	}

	record, _ := repo.Get(context.Background(), "1000000000001", svc.now().Format("2006-01-02"))
	wantCounters := map[string]int{
		"bbs_sign": 1, "bbs_detail": 3, "bbs_like": 5, "bbs_share": 1, "bbs_reply": 1,
	}
	for kind, want := range wantCounters {
		if got := record.Counter(kind); got != want {
			t.Errorf("counter %s = %d, want %d", kind, got, want)
		}
	}

	// detail/like/reply share one listing fetch.
	if api.calls["postList"] != 1 {
		t.Errorf("postList called %d times, want 1", api.calls["postList"])
	}
}

func Test_service_Run_PagedTaskAbortsKeepingProgress(t *testing.T) {
	api := newFakeAPI()
	api.taskProcess = taskProcessEnvelope(dnaapi.BBSTask{Remark: "浏览帖子", Times: 3})
	api.postList = postListEnvelope(10)
	api.postDetail = dnaapi.ErrEnvelope("boom")
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.GameSign = false
	cfg.BBSTasks = []string{"bbs_detail"}
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}

	if result.ErrorMsg == "" {
		t.Error("expected error message after repeated failures")
	}
	if api.calls["postDetail"] != errorLimit {
		t.Errorf("postDetail called %d times, want %d", api.calls["postDetail"], errorLimit)
	}

	// Partial progress (zero here) still persisted, never negative.
	record, _ := repo.Get(context.Background(), "1000000000001", svc.now().Format("2006-01-02"))
	if record == nil {
		t.Fatal("record not persisted after abort")
	}
	if record.BBSDetail != 0 {
		t.Errorf("bbs_detail = %d, want 0", record.BBSDetail)
	}
}

func Test_service_Run_CountersNeverExceedTarget(t *testing.T) {
	api := newFakeAPI()
	// Upstream reports a higher target than the local constant; the counter
	// must still clamp.
	api.taskProcess = taskProcessEnvelope(dnaapi.BBSTask{Remark: "点赞帖子", Times: 50})
	api.postList = postListEnvelope(60)
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.GameSign = false
	cfg.BBSTasks = []string{"bbs_like"}
	svc := testService(api, repo, cfg)

	if _, err := svc.Run(context.Background(), testAccount("1000000000001")); err != nil {
		t.Fatal(err)
	}

	record, _ := repo.Get(context.Background(), "1000000000001", svc.now().Format("2006-01-02"))
	if record.BBSLike > models.TargetBBSLike {
		t.Errorf("bbs_like = %d, exceeds target %d", record.BBSLike, models.TargetBBSLike)
	}
}

func Test_service_Run_UpstreamCompleteCountsAsSkip(t *testing.T) {
	api := newFakeAPI()
	api.taskProcess = taskProcessEnvelope(dnaapi.BBSTask{Remark: "社区签到", Times: 1, CompleteTimes: 1})
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.GameSign = false
	cfg.BBSTasks = []string{"bbs_sign"}
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Tasks[dnaapi.TaskBBSSign] != StatusSkipped {
		t.Errorf("task status = %v, want skipped", result.Tasks[dnaapi.TaskBBSSign])
	}
	if api.calls["bbsSign"] != 0 {
		t.Error("bbsSign called for an already complete task")
	}
}

func Test_service_Run_BBSSignDoneCode(t *testing.T) {
	api := newFakeAPI()
	api.taskProcess = taskProcessEnvelope(dnaapi.BBSTask{Remark: "社区签到", Times: 1})
	api.bbsSign = &dnaapi.Envelope{Code: dnaapi.CodeBBSDone, Msg: "今日已签到"}
	repo := newFakeSignRepo()
	cfg := DefaultConfig()
	cfg.GameSign = false
	cfg.BBSTasks = []string{"bbs_sign"}
	svc := testService(api, repo, cfg)

	result, err := svc.Run(context.Background(), testAccount("1000000000001"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Tasks[dnaapi.TaskBBSSign] != StatusDone {
		t.Errorf("task status = %v, want done", result.Tasks[dnaapi.TaskBBSSign])
	}
}
