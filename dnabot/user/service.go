package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duetnight/dnabot/dnabot/database/models"
	"github.com/duetnight/dnabot/dnabot/database/repositories"
	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

const (
	msgNotRegistered = "您尚未注册二重螺旋账号，请先在【皎皎角】进行角色绑定"
	msgNoRoles       = "未找到二重螺旋角色，请在皎皎角注册账号后重新登录"
	msgNotLoggedIn   = "当前并未登录"
	msgNoTokens      = "您当前未绑定token或者token已全部失效"
	msgNoBinding     = "尚未绑定任何UID!"
)

// NewDevCode generates the per-login device code the upstream expects, an
// uppercased UUID.
func NewDevCode() string {
	return strings.ToUpper(uuid.NewString())
}

// API is the slice of the upstream client the credential service uses.
type API interface {
	Login(ctx context.Context, mobile, code, devCode string) *dnaapi.Envelope
	RoleList(ctx context.Context, token, devCode string) *dnaapi.Envelope
	ShortNote(ctx context.Context, token, devCode string) *dnaapi.Envelope
}

// Service handles credential lifecycle: login, uid bindings, logout.
type Service struct {
	client   API
	accounts repositories.AccountRepository
}

func NewService(client API, accounts repositories.AccountRepository) *Service {
	return &Service{client: client, accounts: accounts}
}

// Login performs the mobile+sms-code login and binds every returned role.
func (s *Service) Login(ctx context.Context, userID, botID, groupID, mobile, code string) (string, error) {
	devCode := NewDevCode()
	env := s.client.Login(ctx, mobile, code, devCode)
	if !env.IsSuccess() {
		return env.ThrowMsg(), nil
	}
	var res dnaapi.LoginResult
	if err := env.Decode(&res); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if res.IsComplete == 0 {
		return msgNotRegistered, nil
	}
	return s.LoginToken(ctx, userID, botID, groupID, res.Token, devCode)
}

// LoginToken stores the token for every game role it can see and binds the
// uids, making the upstream default role the active one.
func (s *Service) LoginToken(ctx context.Context, userID, botID, groupID, token, devCode string) (string, error) {
	if devCode == "" {
		devCode = NewDevCode()
	}

	env := s.client.RoleList(ctx, token, devCode)
	if !env.IsSuccess() {
		return env.ThrowMsg(), nil
	}
	var res dnaapi.RoleListResult
	if err := env.Decode(&res); err != nil {
		return msgNoRoles, nil
	}

	type boundRole struct {
		uid  string
		name string
	}
	var bound []boundRole

	for _, game := range res.Roles {
		if game.GameID != dnaapi.GameID {
			continue
		}
		for _, vo := range game.ShowVoList {
			uid := vo.RoleID

			err := s.accounts.Upsert(ctx, &models.Account{
				UserID:  userID,
				BotID:   botID,
				UID:     uid,
				Cookie:  token,
				DevCode: devCode,
			})
			if err != nil {
				return "", err
			}

			bindErr := s.accounts.BindUID(ctx, userID, botID, groupID, uid)
			switch {
			case bindErr == nil:
				if err := s.accounts.SwitchActiveUID(ctx, userID, botID, uid); err != nil {
					return "", err
				}
			case errors.Is(bindErr, repositories.ErrUIDExists):
				if vo.IsDefault == 1 {
					if err := s.accounts.SwitchActiveUID(ctx, userID, botID, uid); err != nil {
						return "", err
					}
				}
			case errors.Is(bindErr, repositories.ErrUIDInvalid):
				continue
			default:
				return "", bindErr
			}

			role := boundRole{uid: uid, name: vo.RoleName}
			if vo.IsDefault == 1 {
				bound = append([]boundRole{role}, bound...)
			} else {
				bound = append(bound, role)
			}
		}
	}

	if len(bound) == 0 {
		return msgNotRegistered, nil
	}

	lines := []string{"登录成功, 已为您绑定以下角色:"}
	for _, role := range bound {
		lines = append(lines, fmt.Sprintf("- UID: [%s] 名字: %s", role.uid, role.name))
	}
	return strings.Join(lines, "\n"), nil
}

// Logout unbinds the active uid and deletes its stored credential.
func (s *Service) Logout(ctx context.Context, userID, botID string) (string, error) {
	uid, err := s.accounts.ActiveUID(ctx, userID, botID)
	if err != nil {
		return "", err
	}
	if uid == "" {
		return msgNotLoggedIn, nil
	}
	if err := s.accounts.UnbindUID(ctx, userID, botID, uid); err != nil {
		if errors.Is(err, repositories.ErrUIDNotBound) {
			return msgNotLoggedIn, nil
		}
		return "", err
	}
	if _, err := s.accounts.Delete(ctx, uid, userID, botID); err != nil {
		return "", err
	}
	return "成功退出登录", nil
}

// Bind registers a bare uid without a token and makes it active.
func (s *Service) Bind(ctx context.Context, userID, botID, groupID, uid string) (string, error) {
	err := s.accounts.BindUID(ctx, userID, botID, groupID, uid)
	switch {
	case err == nil:
		if err := s.accounts.SwitchActiveUID(ctx, userID, botID, uid); err != nil {
			return "", err
		}
		return fmt.Sprintf("UID: [%s]绑定成功！", uid), nil
	case errors.Is(err, repositories.ErrUIDInvalid):
		return fmt.Sprintf("UID: [%s]的位数不正确！", uid), nil
	case errors.Is(err, repositories.ErrUIDExists):
		if err := s.accounts.SwitchActiveUID(ctx, userID, botID, uid); err != nil {
			return "", err
		}
		return fmt.Sprintf("UID: [%s]已经绑定过了！", uid), nil
	default:
		return "", err
	}
}

// Switch makes an already-bound uid the active one.
func (s *Service) Switch(ctx context.Context, userID, botID, uid string) (string, error) {
	err := s.accounts.SwitchActiveUID(ctx, userID, botID, uid)
	if errors.Is(err, repositories.ErrUIDNotBound) {
		return msgNoBinding, nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UID: [%s]切换成功！", uid), nil
}

// ListUIDs shows the binding list, active uid first.
func (s *Service) ListUIDs(ctx context.Context, userID, botID string) (string, error) {
	uids, err := s.accounts.UIDList(ctx, userID, botID)
	if err != nil {
		return "", err
	}
	if len(uids) == 0 {
		return msgNoBinding, nil
	}
	return "绑定的UID列表为：\n" + strings.Join(uids, "\n"), nil
}

// Unbind drops one uid from the binding list.
func (s *Service) Unbind(ctx context.Context, userID, botID, uid string) (string, error) {
	err := s.accounts.UnbindUID(ctx, userID, botID, uid)
	if errors.Is(err, repositories.ErrUIDNotBound) {
		return "删除失败！\n该命令末尾需要跟正确的UID!", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UID: [%s]删除成功！", uid), nil
}

// UnbindAll empties the binding list.
func (s *Service) UnbindAll(ctx context.Context, userID, botID string) (string, error) {
	err := s.accounts.ClearUIDs(ctx, userID, botID)
	if errors.Is(err, repositories.ErrUIDNotBound) {
		return msgNoBinding, nil
	}
	if err != nil {
		return "", err
	}
	return "删除全部UID成功！", nil
}

// Cookies dumps the stored tokens of every bound uid, for backup. Only ever
// sent in a direct message.
func (s *Service) Cookies(ctx context.Context, userID, botID string) (string, error) {
	uids, err := s.accounts.UIDList(ctx, userID, botID)
	if err != nil {
		return "", err
	}
	if len(uids) == 0 {
		return msgNoTokens, nil
	}

	var lines []string
	for _, uid := range uids {
		account, err := s.accounts.Get(ctx, uid, userID, botID)
		if err != nil || account == nil || account.Cookie == "" {
			continue
		}
		lines = append(lines,
			"二重螺旋uid: "+uid,
			"token: "+account.Cookie,
			"--------------------------------")
	}
	if len(lines) == 0 {
		return msgNoTokens, nil
	}
	return strings.Join(lines, "\n"), nil
}

// Note renders the daily short note of the active uid as text.
func (s *Service) Note(ctx context.Context, userID, botID string) (string, error) {
	uid, err := s.accounts.ActiveUID(ctx, userID, botID)
	if err != nil {
		return "", err
	}
	if uid == "" {
		return msgNotLoggedIn, nil
	}
	account, err := s.accounts.Get(ctx, uid, userID, botID)
	if err != nil {
		return "", err
	}
	if !account.Valid() {
		return msgNoTokens, nil
	}

	env := s.client.ShortNote(ctx, account.Cookie, account.DevCode)
	if !env.IsSuccess() {
		return env.ThrowMsg(), nil
	}
	var note dnaapi.ShortNoteResult
	if err := env.Decode(&note); err != nil {
		return "", fmt.Errorf("decode short note: %w", err)
	}

	lines := []string{
		fmt.Sprintf("UID: %s", uid),
		fmt.Sprintf("备忘手记: %d/%d", note.CurrentTaskProgress, note.MaxDailyTaskProgress),
		fmt.Sprintf("迷津: %d/%d", note.RougeLikeRewardCount, note.RougeLikeRewardTotal),
		fmt.Sprintf("梦魇残声: %d/%d", note.HardBossRewardCount, note.HardBossRewardTotal),
	}
	return strings.Join(lines, "\n"), nil
}
