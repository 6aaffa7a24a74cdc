package dnaapi

// GameID is the vendor-side identifier of the game inside the community
// platform.
const GameID = 268

// DefaultBaseURL is the game vendor's API host.
const DefaultBaseURL = "https://dnaapi.yingxiong.com"

const (
	pathLogin        = "/user/sdkLogin"
	pathLoginLog     = "/user/loginLog"
	pathRSAPublicKey = "/user/getPublicKey"
	pathRoleList     = "/game/roleList"
	pathRoleForTool  = "/tool/roleInfoForTool"
	pathShortNote    = "/tool/shortNote"
	pathHaveSignIn   = "/signin/haveSignIn"
	pathSignCalendar = "/signin/calendar"
	pathGameSign     = "/signin/doSignin"
	pathBBSSign      = "/task/bbsSign"
	pathTaskProcess  = "/task/process"
	pathPostList     = "/forum/postList"
	pathPostDetail   = "/forum/postDetail"
	pathLikePost     = "/forum/like"
	pathSharePost    = "/forum/shareTask"
	pathReplyPost    = "/forum/replyPost"
	pathAnnList      = "/forum/companyPostList"
)

// annPosterID is the official account whose post feed doubles as the
// announcement list.
const annPosterID = "709542994134436647"

// forumAll is the "everything" forum used for the daily browse/like/reply
// tasks.
const forumAll = 46

// DefaultRSAPublicKey is the key shipped with the mobile client, used when
// the key endpoint is unreachable or returns nothing.
const DefaultRSAPublicKey = "MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDGpdbezK+eknQZQzPOjp8mr/dP+QHwk8CRkQh6C6qFnfLH3tiyl0pnt3dePuFDnM1PUXGhCkQ157ePJCQgkDU2+mimDmXh0oLFn9zuWSp+U8uLSLX3t3PpJ8TmNCROfUDWvzdbnShqg7JfDmnrOJz49qd234W84nrfTHbzdqeigQIDAQAB"

// RotationEndpoint is a community-maintained mirror that serves the current
// instance rotation without authentication. Tried in order before falling
// back to an authenticated roleInfoForTool call.
type RotationEndpoint struct {
	URL    string
	Method string
}

var RotationEndpoints = []RotationEndpoint{
	{URL: "https://dna.helix-tools.com/api/mh/current", Method: "GET"},
	{URL: "https://mh.dnatool.cn/api/rotation", Method: "GET"},
}
