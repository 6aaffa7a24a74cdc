package dnaapi

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
)

// maxRandomProbes bounds how many stored accounts a shared query will try
// before giving up.
const maxRandomProbes = 3

// AccountResolver turns stored credentials into usable ones, probing token
// liveness and writing invalidation back to storage as a side effect.
type AccountResolver struct {
	client *Client
	repo   repositories.AccountRepository
}

func NewAccountResolver(client *Client, repo repositories.AccountRepository) *AccountResolver {
	return &AccountResolver{client: client, repo: repo}
}

// Resolve loads the credential for (uid, user, bot). A credential that is
// flagged invalid, or whose liveness probe fails, yields nil; the probe
// failure is written back so later readers skip the dead token.
func (r *AccountResolver) Resolve(ctx context.Context, uid, userID, botID string) (*models.Account, error) {
	account, err := r.repo.Get(ctx, uid, userID, botID)
	if err != nil {
		return nil, err
	}
	if !account.Valid() {
		return nil, nil
	}

	if !r.client.LoginLog(ctx, account.Cookie, account.DevCode).IsSuccess() {
		if err := r.repo.MarkInvalid(ctx, account.UID, account.Cookie); err != nil {
			slog.Error("Failed to mark credential invalid",
				slog.String("type", "db"),
				slog.String("uid", account.UID),
				slog.Any("error", err),
			)
		}
		return nil, nil
	}
	return account, nil
}

// FetchRoster loads the character and weapon roster through any live stored
// credential. ok is false when no credential worked or the query failed.
func (r *AccountResolver) FetchRoster(ctx context.Context) (RoleShow, bool, error) {
	account, err := r.Random(ctx)
	if err != nil || account == nil {
		return RoleShow{}, false, err
	}

	env := r.client.RoleForTool(ctx, account.Cookie, account.DevCode)
	if !env.IsSuccess() {
		return RoleShow{}, false, nil
	}
	var result RoleForToolResult
	if err := env.Decode(&result); err != nil {
		return RoleShow{}, false, nil
	}
	return result.RoleInfo.RoleShow, true, nil
}

// FetchRotation loads the current instance rotation through any live stored
// credential. ok is false when no credential worked or the query failed.
func (r *AccountResolver) FetchRotation(ctx context.Context) ([]RotationTrack, bool, error) {
	account, err := r.Random(ctx)
	if err != nil || account == nil {
		return nil, false, err
	}

	env := r.client.RoleForTool(ctx, account.Cookie, account.DevCode)
	if !env.IsSuccess() {
		return nil, false, nil
	}
	var result RoleForToolResult
	if err := env.Decode(&result); err != nil {
		return nil, false, nil
	}
	return NormalizeTracks(result.RoleInfo.InstanceInfo), true, nil
}

// Random picks a live credential from all stored accounts for queries that
// need any login rather than a particular one, such as the rotation fetch.
// Dead tokens found along the way are invalidated.
func (r *AccountResolver) Random(ctx context.Context) (*models.Account, error) {
	accounts, err := r.repo.ListAllValid(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	rand.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})

	probes := maxRandomProbes
	if len(accounts) < probes {
		probes = len(accounts)
	}
	for _, account := range accounts[:probes] {
		if r.client.LoginLog(ctx, account.Cookie, account.DevCode).IsSuccess() {
			return account, nil
		}
		if err := r.repo.MarkInvalid(ctx, account.UID, account.Cookie); err != nil {
			slog.Error("Failed to mark credential invalid",
				slog.String("type", "db"),
				slog.String("uid", account.UID),
				slog.Any("error", err),
			)
		}
	}
	return nil, nil
}
