package dnaapi

import "strings"

// TaskKind identifies one of the five community daily tasks.
type TaskKind string

const (
	TaskBBSSign   TaskKind = "bbs_sign"
	TaskBBSDetail TaskKind = "bbs_detail"
	TaskBBSLike   TaskKind = "bbs_like"
	TaskBBSShare  TaskKind = "bbs_share"
	TaskBBSReply  TaskKind = "bbs_reply"
)

// AllTaskKinds lists the community tasks in report order.
var AllTaskKinds = []TaskKind{TaskBBSSign, TaskBBSDetail, TaskBBSLike, TaskBBSShare, TaskBBSReply}

// MarkNameOf maps the free-text remark of a daily task row to its kind.
// The upstream only ships a human-readable remark, so matching is by keyword.
func MarkNameOf(remark string) TaskKind {
	switch {
	case strings.Contains(remark, "签到"):
		return TaskBBSSign
	case strings.Contains(remark, "浏览"), strings.Contains(remark, "查看"):
		return TaskBBSDetail
	case strings.Contains(remark, "点赞"):
		return TaskBBSLike
	case strings.Contains(remark, "分享"):
		return TaskBBSShare
	case strings.Contains(remark, "回复"), strings.Contains(remark, "评论"):
		return TaskBBSReply
	}
	return ""
}

type UserGame struct {
	GameID   int    `json:"gameId"`
	GameName string `json:"gameName"`
}

type LoginResult struct {
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	IsRegister   int        `json:"isRegister"`
	IsComplete   int        `json:"isComplete"` // 0 when no game role is bound yet
	UserGameList []UserGame `json:"userGameList"`
}

type RoleShowVo struct {
	RoleID           string `json:"roleId"`
	RoleName         string `json:"roleName"`
	Level            int    `json:"level"`
	IsDefault        int    `json:"isDefault"`
	RoleRegisterTime string `json:"roleRegisterTime"`
	RoleBoundID      string `json:"roleBoundId"`
}

type GameRoles struct {
	GameID     int          `json:"gameId"`
	GameName   string       `json:"gameName"`
	ShowVoList []RoleShowVo `json:"showVoList"`
}

type RoleListResult struct {
	Roles []GameRoles `json:"roles"`
}

type RosterChar struct {
	CharID   int    `json:"charId"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	UnLocked bool   `json:"unLocked"`
}

type RosterWeapon struct {
	WeaponID int    `json:"weaponId"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	UnLocked bool   `json:"unLocked"`
}

// RoleShow is the account roster returned by roleInfoForTool; the alias
// resolver seeds its tables from it.
type RoleShow struct {
	RoleID           string         `json:"roleId"`
	RoleName         string         `json:"roleName"`
	Level            int            `json:"level"`
	RoleChars        []RosterChar   `json:"roleChars"`
	LangRangeWeapons []RosterWeapon `json:"langRangeWeapons"`
	CloseWeapons     []RosterWeapon `json:"closeWeapons"`
}

type RoleInfoForTool struct {
	RoleShow     RoleShow        `json:"roleShow"`
	InstanceInfo []RotationTrack `json:"instanceInfo"`
}

type RoleForToolResult struct {
	RoleInfo RoleInfoForTool `json:"roleInfo"`
}

type DayAward struct {
	ID          int    `json:"id"`
	GameID      int    `json:"gameId"`
	PeriodID    int    `json:"periodId"`
	DayInPeriod int    `json:"dayInPeriod"`
	AwardName   string `json:"awardName"`
	AwardNum    int    `json:"awardNum"`
	IconURL     string `json:"iconUrl"`
}

type CalendarSignResult struct {
	TodaySignin bool       `json:"todaySignin"`
	SigninTime  int        `json:"signinTime"` // index of today's slot in DayAward
	UserGoldNum int        `json:"userGoldNum"`
	DayAward    []DayAward `json:"dayAward"`
}

// BBSTask is one daily community task row from the task-progress endpoint.
type BBSTask struct {
	Remark        string  `json:"remark"`
	CompleteTimes int     `json:"completeTimes"`
	Times         int     `json:"times"`
	Process       float64 `json:"process"`
	GainExp       int     `json:"gainExp"`
	GainGold      int     `json:"gainGold"`
}

// Kind resolves the task kind from the remark text.
func (t BBSTask) Kind() TaskKind {
	return MarkNameOf(t.Remark)
}

type TaskProcessResult struct {
	DailyTask []BBSTask `json:"dailyTask"`
}

// Post is a community post as listed by the forum endpoints. Only the fields
// the like/reply payloads need are kept.
type Post struct {
	PostID      string `json:"postId"`
	PostTitle   string `json:"postTitle"`
	PostType    int    `json:"postType"`
	GameForumID int    `json:"gameForumId"`
	UserID      string `json:"userId"`
	PostTime    string `json:"postTime"`
}

type PostListResult struct {
	PostList []Post `json:"postList"`
}

// Post body content types.
const (
	ContentText  = 1
	ContentImage = 2
	ContentVideo = 5
)

type PostVideo struct {
	CoverURL string `json:"coverUrl"`
}

// PostContentBlock is one segment of a post body: text, an image, or a
// video represented by its cover image.
type PostContentBlock struct {
	ContentType  int        `json:"contentType"`
	Content      string     `json:"content"`
	URL          string     `json:"url"`
	ImgWidth     int        `json:"imgWidth"`
	ImgHeight    int        `json:"imgHeight"`
	ContentVideo *PostVideo `json:"contentVideo"`
}

type PostDetail struct {
	PostID      string             `json:"postId"`
	PostTitle   string             `json:"postTitle"`
	PostTime    string             `json:"postTime"`
	PostContent []PostContentBlock `json:"postContent"`
}

type PostDetailResult struct {
	PostDetail PostDetail `json:"postDetail"`
}

type ShortNoteResult struct {
	RougeLikeRewardCount int `json:"rougeLikeRewardCount"`
	RougeLikeRewardTotal int `json:"rougeLikeRewardTotal"`
	CurrentTaskProgress  int `json:"currentTaskProgress"`
	MaxDailyTaskProgress int `json:"maxDailyTaskProgress"`
	HardBossRewardCount  int `json:"hardBossRewardCount"`
	HardBossRewardTotal  int `json:"hardBossRewardTotal"`
}

// RotationType distinguishes the three parallel instance tracks.
type RotationType string

const (
	RotationRole   RotationType = "role"
	RotationWeapon RotationType = "weapon"
	RotationMzx    RotationType = "mzx"
)

// TypeName is the user-facing label of a rotation track.
func (t RotationType) TypeName() string {
	switch t {
	case RotationRole:
		return "角色"
	case RotationWeapon:
		return "武器"
	case RotationMzx:
		return "魔之楔"
	}
	return string(t)
}

type RotationInstance struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type RotationTrack struct {
	Type      RotationType       `json:"-"`
	Instances []RotationInstance `json:"instances"`
}

// NormalizeTracks tags the three parallel tracks by their position in the
// upstream list: role, weapon, mzx in that order.
func NormalizeTracks(tracks []RotationTrack) []RotationTrack {
	order := []RotationType{RotationRole, RotationWeapon, RotationMzx}
	for i := range tracks {
		if i < len(order) {
			tracks[i].Type = order[i]
		}
	}
	return tracks
}

type RSAKeyResult struct {
	Key string `json:"key"`
}
