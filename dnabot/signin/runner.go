package signin

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
)

// purgeKeepDays is how many days of signin records the sweep keeps.
const purgeKeepDays = 2

// Tally is the running success/failure count of one scheduled category.
type Tally struct {
	Success int
	Failed  int
}

// Mention is one failed account to call out in a group report.
type Mention struct {
	UserID string
	Text   string
}

// GroupReport aggregates one group channel's scheduled-run outcome. Only the
// failed subset is mentioned; successes are just counted.
type GroupReport struct {
	Success  int
	Failed   int
	Mentions []Mention
}

// CategoryReport is the push material of one category (game or community).
type CategoryReport struct {
	Title   string
	Private map[string][]string     // user id -> per-account short messages
	Groups  map[string]*GroupReport // group channel id -> aggregate
	Tally   Tally
}

func newCategoryReport(title string) *CategoryReport {
	return &CategoryReport{
		Title:   title,
		Private: make(map[string][]string),
		Groups:  make(map[string]*GroupReport),
	}
}

// GroupSummary renders a group channel's headline.
func (c *CategoryReport) GroupSummary(groupID string) string {
	g := c.Groups[groupID]
	if g == nil {
		return ""
	}
	return fmt.Sprintf("✅[二重螺旋]今日%s任务已完成！\n本群共签到成功%d人\n共签到失败%d人", c.Title, g.Success, g.Failed)
}

// add routes one account's short outcome into the report, following the
// account's sign_switch: "on" pushes privately, "off" only tallies, anything
// else is the target group channel id.
func (c *CategoryReport) add(account *models.Account, msg string) {
	if strings.Contains(msg, "禁止") {
		return
	}
	failed := strings.Contains(msg, "失败")

	switch account.SignSwitch {
	case models.SignSwitchOn:
		c.Private[account.UserID] = append(c.Private[account.UserID],
			fmt.Sprintf("UID: %s %s", account.UID, msg))
	case models.SignSwitchOff:
		// counted below, nothing pushed
	default:
		g := c.Groups[account.SignSwitch]
		if g == nil {
			g = &GroupReport{}
			c.Groups[account.SignSwitch] = g
		}
		if failed {
			g.Failed++
			g.Mentions = append(g.Mentions, Mention{
				UserID: account.UserID,
				Text:   fmt.Sprintf("UID: %s %s", account.UID, msg),
			})
		} else {
			g.Success++
		}
	}

	if failed {
		c.Tally.Failed++
	} else {
		c.Tally.Success++
	}
}

// BatchReport is everything a scheduled run produced: per-category push
// material plus the operator-facing summary line.
type BatchReport struct {
	Game    *CategoryReport
	BBS     *CategoryReport
	Summary string
}

// Runner drives manual and scheduled signin over the stored accounts.
type Runner struct {
	svc      *Service
	accounts repositories.AccountRepository
	signs    repositories.SignRepository
	cfg      Config

	now func() time.Time
}

func NewRunner(svc *Service, accounts repositories.AccountRepository, signs repositories.SignRepository, cfg Config) *Runner {
	return &Runner{
		svc:      svc,
		accounts: accounts,
		signs:    signs,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ManualSign runs the machine for every account bound to one chat user,
// sequentially, and returns the combined report text.
func (r *Runner) ManualSign(ctx context.Context, userID, botID string) (string, error) {
	if !r.cfg.GameSign && !r.cfg.BBSSign {
		return "签到功能未开启", nil
	}

	accounts, err := r.accounts.ListByUser(ctx, userID, botID)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "请检查登录有效性", nil
	}

	enabled := r.cfg.EnabledTasks()
	var reports []string
	for _, account := range accounts {
		result, err := r.svc.Run(ctx, account)
		if err != nil {
			return "", err
		}
		reports = append(reports, result.Report(enabled))
	}
	return strings.Join(reports, "\n"), nil
}

// AutoSign runs the machine for every eligible stored account in bounded
// batches and aggregates the push report. An unexpected per-account error
// aborts the whole batch and becomes the returned summary.
func (r *Runner) AutoSign(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{
		Game: newCategoryReport("游戏签到"),
		BBS:  newCategoryReport("社区签到"),
	}

	if !r.cfg.Scheduled || (!r.cfg.GameSign && !r.cfg.BBSSign) {
		report.Summary = "[二重螺旋]自动任务\n签到功能未开启"
		return report, nil
	}

	accounts, err := r.accounts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []*models.Account
	for _, account := range accounts {
		if !r.cfg.Master && account.SignSwitch == models.SignSwitchOff {
			continue
		}
		eligible = append(eligible, account)
	}
	if len(eligible) == 0 {
		report.Summary = "[二重螺旋]自动任务\n没有需要签到的用户"
		return report, nil
	}

	pool := r.cfg.poolSize()
	minDelay, maxDelay := r.cfg.intervalRange()

	for start := 0; start < len(eligible); start += pool {
		end := start + pool
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		results := make([]*Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, account := range batch {
			i, account := i, account
			g.Go(func() error {
				result, err := r.svc.Run(gctx, account)
				if err != nil {
					return err
				}
				results[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			slog.Error("Scheduled signin batch aborted",
				slog.String("type", "cmd"),
				slog.Any("error", err),
			)
			report.Summary = err.Error()
			return report, nil
		}

		for i, result := range results {
			report.Game.add(batch[i], r.autoMsg(result, false))
			report.BBS.add(batch[i], r.autoMsg(result, true))
		}

		if end < len(eligible) {
			delay := time.Duration((minDelay + rand.Float64()*(maxDelay-minDelay)) * float64(time.Second))
			slog.Info("Waiting before next signin batch",
				slog.String("type", "cmd"),
				slog.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	if !r.cfg.PrivateReport {
		report.Game.Private = map[string][]string{}
		report.BBS.Private = map[string][]string{}
	}
	if !r.cfg.GroupReport {
		report.Game.Groups = map[string]*GroupReport{}
		report.BBS.Groups = map[string]*GroupReport{}
	}

	report.Summary = fmt.Sprintf("[二重螺旋]自动任务\n今日成功游戏签到 %d 个账号\n今日社区签到 %d 个账号",
		report.Game.Tally.Success, report.BBS.Tally.Success)
	return report, nil
}

// autoMsg is the short per-account outcome used for push aggregation.
func (r *Runner) autoMsg(result *Result, bbs bool) string {
	if result.Expired {
		return "签到失败"
	}
	if bbs {
		return result.BBS.AutoLabel()
	}
	return result.Game.AutoLabel()
}

// Sweep purges signin records older than two days.
func (r *Runner) Sweep(ctx context.Context) error {
	cutoff := r.now().AddDate(0, 0, -purgeKeepDays).Format("2006-01-02")
	purged, err := r.signs.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	slog.Info("Purged stale signin records",
		slog.String("type", "db"),
		slog.String("cutoff", cutoff),
		slog.Int64("purged", purged),
	)
	return nil
}
