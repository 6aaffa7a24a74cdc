package dnaapi

import (
	"encoding/json"
)

// Response codes the upstream uses. Anything else is a business failure.
const (
	CodeError         = -999
	CodeOKZero        = 0
	CodeOKHTTP        = 200
	CodeAlreadySigned = 711   // game signin already submitted today
	CodeBBSDone       = 10000 // community signin already counted
)

// Envelope is the upstream response wrapper. The data field is inconsistently
// double-encoded: sometimes an object, sometimes a JSON string containing one.
// UnmarshalJSON re-parses string data transparently so callers never see the
// difference.
type Envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type rawEnvelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw rawEnvelope
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Code = raw.Code
	e.Msg = raw.Msg
	e.Success = raw.Success
	e.Data = raw.Data

	var s string
	if err := json.Unmarshal(raw.Data, &s); err == nil {
		var inner json.RawMessage
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			e.Data = inner
		}
	}
	return nil
}

// IsSuccess reports whether the envelope represents a successful call:
// the success flag set and the code one of the two OK values.
func (e *Envelope) IsSuccess() bool {
	return e.Success && (e.Code == CodeOKZero || e.Code == CodeOKHTTP)
}

// Decode unmarshals the (already un-double-encoded) data field into v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// ThrowMsg is the user-facing message for a failed envelope.
func (e *Envelope) ThrowMsg() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "系统繁忙，请稍后再试"
}

// ErrEnvelope builds a synthetic failure envelope so every call site can use
// a single IsSuccess check instead of handling transport errors separately.
func ErrEnvelope(msg string) *Envelope {
	return &Envelope{Code: CodeError, Msg: msg, Success: false}
}

// OKEnvelope builds a synthetic success envelope, used by tests and by the
// third-party rotation fallback path.
func OKEnvelope(data any) *Envelope {
	raw, _ := json.Marshal(data)
	return &Envelope{Code: CodeOKZero, Msg: "请求成功", Success: true, Data: raw}
}
