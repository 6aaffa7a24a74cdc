package dnaapi

import "net/http"

const contentTypeForm = "application/x-www-form-urlencoded; charset=utf-8"

const (
	bbsOrigin = "https://dnabbs.yingxiong.com"
	bbsRefer  = "https://dnabbs.yingxiong.com/"
)

// HeaderProfile selects which client the request pretends to be. The upstream
// serves both the native app and an embedded web view, and the two carry the
// encrypted secret in different headers.
type HeaderProfile string

const (
	ProfileIOS HeaderProfile = "ios"
	ProfileH5  HeaderProfile = "h5"
)

// HeaderOptions are the per-request knobs for BuildHeaders.
type HeaderOptions struct {
	Profile    HeaderProfile
	DevCode    string
	Token      string
	NeedOrigin bool
	NeedRefer  bool
}

// BuildHeaders returns the base header set for the chosen profile with the
// device code, origin/refer and token injected when present.
func BuildHeaders(opts HeaderOptions) http.Header {
	h := http.Header{}
	switch opts.Profile {
	case ProfileH5:
		h.Set("version", "3.11.0")
		h.Set("source", "h5")
		h.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36")
	default:
		h.Set("version", "1.1.3")
		h.Set("source", "ios")
		h.Set("User-Agent", "DoubleHelix/4 CFNetwork/3860.100.1 Darwin/25.0.0")
	}
	h.Set("Content-Type", contentTypeForm)

	if opts.DevCode != "" {
		h.Set("devCode", opts.DevCode)
	}
	if opts.NeedOrigin {
		h.Set("origin", bbsOrigin)
	}
	if opts.NeedRefer {
		h.Set("refer", bbsRefer)
	}
	if opts.Token != "" {
		h.Set("token", opts.Token)
	}
	return h
}

// IsH5 reports whether a header set was built from the h5 profile.
func IsH5(h http.Header) bool {
	return h.Get("source") == "h5"
}
