package signin

import "github.com/duetnight/dnabot/dnabot/dnaapi"

// Config carries the signin feature switches. Loaded from the [sign] block
// of the bot config file.
type Config struct {
	GameSign  bool `toml:"game_sign"`
	BBSSign   bool `toml:"bbs_sign"`
	Scheduled bool `toml:"scheduled"`
	// Master signs every stored account regardless of its per-account switch.
	Master bool `toml:"master"`

	// BBSTasks lists the enabled community task kinds. Empty means all five.
	BBSTasks []string `toml:"bbs_tasks"`

	// Concurrent is the scheduled-run pool size.
	Concurrent int `toml:"concurrent"`
	// BatchInterval is the [min, max] delay in seconds between batches.
	BatchInterval []int `toml:"batch_interval"`

	Cron          string `toml:"cron"`
	PrivateReport bool   `toml:"private_report"`
	GroupReport   bool   `toml:"group_report"`
}

func DefaultConfig() Config {
	return Config{
		GameSign:      true,
		BBSSign:       true,
		Scheduled:     true,
		BBSTasks:      allTaskNames(),
		Concurrent:    2,
		BatchInterval: []int{2, 5},
		Cron:          "0 8 * * *",
		PrivateReport: true,
		GroupReport:   true,
	}
}

func allTaskNames() []string {
	names := make([]string, 0, len(dnaapi.AllTaskKinds))
	for _, kind := range dnaapi.AllTaskKinds {
		names = append(names, string(kind))
	}
	return names
}

// EnabledTasks resolves the configured task list to kinds, in report order.
func (c Config) EnabledTasks() []dnaapi.TaskKind {
	if len(c.BBSTasks) == 0 {
		return dnaapi.AllTaskKinds
	}
	enabled := make(map[string]bool, len(c.BBSTasks))
	for _, name := range c.BBSTasks {
		enabled[name] = true
	}
	kinds := make([]dnaapi.TaskKind, 0, len(dnaapi.AllTaskKinds))
	for _, kind := range dnaapi.AllTaskKinds {
		if enabled[string(kind)] {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// EnabledTaskNames is EnabledTasks as plain strings for the record helpers.
func (c Config) EnabledTaskNames() []string {
	kinds := c.EnabledTasks()
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	return names
}

func (c Config) TaskEnabled(kind dnaapi.TaskKind) bool {
	for _, k := range c.EnabledTasks() {
		if k == kind {
			return true
		}
	}
	return false
}

func (c Config) poolSize() int {
	if c.Concurrent > 0 {
		return c.Concurrent
	}
	return 2
}

func (c Config) intervalRange() (float64, float64) {
	if len(c.BatchInterval) >= 2 && c.BatchInterval[0] >= 0 && c.BatchInterval[1] >= c.BatchInterval[0] {
		return float64(c.BatchInterval[0]), float64(c.BatchInterval[1])
	}
	return 2, 5
}
