package mh

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

// commissionNames is the known commission roster across the three tracks.
// Endless variants share the prefix before the slash.
var commissionNames = []string{
	"扼守", "拆解", "勘探", "追缉", "探险", "调停", "避险", "迁移", "驱逐", "护送", "驱离",
}

// CommissionNames returns the subscribable commission list.
func CommissionNames() []string {
	return append([]string(nil), commissionNames...)
}

// KnownCommission reports whether name is a subscribable commission.
func KnownCommission(name string) bool {
	for _, n := range commissionNames {
		if n == name {
			return true
		}
	}
	return false
}

// TrackNames are the user-facing track labels in subscription keys.
var TrackNames = []string{"角色", "武器", "魔之楔"}

// Config carries the rotation/subscription switches. Loaded from the [mh]
// block of the bot config file.
type Config struct {
	// PushModes lists enabled push targets: "private", "group".
	PushModes []string `toml:"push_modes"`
	// ThirdParty tries the unauthenticated mirror endpoints before falling
	// back to an authenticated roleInfoForTool call.
	ThirdParty bool   `toml:"third_party"`
	Cron       string `toml:"cron"`
}

func DefaultConfig() Config {
	return Config{
		PushModes:  []string{"private", "group"},
		ThirdParty: true,
		Cron:       "5 * * * *",
	}
}

func (c Config) pushEnabled(mode string) bool {
	for _, m := range c.PushModes {
		if m == mode {
			return true
		}
	}
	return false
}

// RawCaller issues an unauthenticated request against an absolute URL.
// Satisfied by the dnaapi client.
type RawCaller interface {
	DoRaw(ctx context.Context, method, absURL string, header http.Header) *dnaapi.Envelope
}

// RotationFetcher yields the rotation through a stored credential, the
// authenticated fallback path. Satisfied by dnaapi's account resolver.
type RotationFetcher interface {
	FetchRotation(ctx context.Context) ([]dnaapi.RotationTrack, bool, error)
}

// Rotation serves the current instance rotation, cached per refresh slot.
// The rotation flips on the hour, so the cache key is the next refresh time.
type Rotation struct {
	caller   RawCaller
	fallback RotationFetcher
	cfg      Config
	cache    *lru.Cache

	now func() time.Time
}

func NewRotation(caller RawCaller, fallback RotationFetcher, cfg Config) *Rotation {
	cache, _ := lru.New(4)
	return &Rotation{
		caller:   caller,
		fallback: fallback,
		cfg:      cfg,
		cache:    cache,
		now:      time.Now,
	}
}

// NextRefresh returns the top of the next hour, the rotation's flip time.
func (r *Rotation) NextRefresh() time.Time {
	return r.now().Truncate(time.Hour).Add(time.Hour)
}

// Tracks returns the rotation active until the given refresh time. force
// bypasses the cache, which the hourly push uses right after the flip.
func (r *Rotation) Tracks(ctx context.Context, refresh time.Time, force bool) []dnaapi.RotationTrack {
	key := refresh.Unix()
	if !force {
		if cached, ok := r.cache.Get(key); ok {
			return cached.([]dnaapi.RotationTrack)
		}
	}

	tracks := r.fetch(ctx)
	if len(tracks) == 0 {
		slog.Warn("No rotation data available", slog.String("type", "cmd"))
		return nil
	}
	r.cache.Add(key, tracks)
	return tracks
}

func (r *Rotation) fetch(ctx context.Context) []dnaapi.RotationTrack {
	if r.cfg.ThirdParty {
		for _, endpoint := range dnaapi.RotationEndpoints {
			env := r.caller.DoRaw(ctx, endpoint.Method, endpoint.URL, nil)
			if !env.IsSuccess() {
				continue
			}
			var tracks []dnaapi.RotationTrack
			if err := env.Decode(&tracks); err != nil || len(tracks) == 0 {
				continue
			}
			return dnaapi.NormalizeTracks(tracks)
		}
	}

	tracks, ok, err := r.fallback.FetchRotation(ctx)
	if err != nil {
		slog.Error("Rotation fallback fetch failed",
			slog.String("type", "cmd"),
			slog.Any("error", err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return tracks
}

// baseName strips the endless-variant suffix: "勘探/无尽" subscribes as "勘探".
func baseName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}
