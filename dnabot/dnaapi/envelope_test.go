package dnaapi

import (
	"encoding/json"
	"testing"
)

func Test_envelope_UnmarshalJSON(t *testing.T) {
	type payload struct {
		Token string `json:"token"`
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "ObjectData",
			body: `{"code":200,"msg":"ok","success":true,"data":{"token":"abc"}}`,
			want: "abc",
		},
		{
			name: "DoubleEncodedData",
			body: `{"code":200,"msg":"ok","success":true,"data":"{\"token\":\"abc\"}"}`,
			want: "abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			var p payload
			if err := env.Decode(&p); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if p.Token != tt.want {
				t.Errorf("token = %q, want %q", p.Token, tt.want)
			}
		})
	}
}

func Test_envelope_PlainStringDataSurvives(t *testing.T) {
	// A data field that is a string but not nested JSON stays as-is.
	var env Envelope
	if err := json.Unmarshal([]byte(`{"code":200,"msg":"ok","success":true,"data":"plain"}`), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var s string
	if err := env.Decode(&s); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s != "plain" {
		t.Errorf("data = %q, want %q", s, "plain")
	}
}

func Test_envelope_IsSuccess(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		success bool
		want    bool
	}{
		{name: "CodeZero", code: 0, success: true, want: true},
		{name: "Code200", code: 200, success: true, want: true},
		{name: "SuccessFlagUnsetWins", code: 200, success: false, want: false},
		{name: "BusinessCode", code: 711, success: true, want: false},
		{name: "SyntheticFailure", code: CodeError, success: false, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Envelope{Code: tt.code, Success: tt.success}
			if got := env.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_envelope_ThrowMsg(t *testing.T) {
	if got := (&Envelope{Msg: "验证码错误"}).ThrowMsg(); got != "验证码错误" {
		t.Errorf("ThrowMsg() = %q", got)
	}
	if got := (&Envelope{}).ThrowMsg(); got != "系统繁忙，请稍后再试" {
		t.Errorf("ThrowMsg() fallback = %q", got)
	}
}

func Test_OKEnvelope(t *testing.T) {
	env := OKEnvelope(map[string]int{"n": 7})
	if !env.IsSuccess() {
		t.Fatalf("OKEnvelope() not successful")
	}
	var got map[string]int
	if err := env.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["n"] != 7 {
		t.Errorf("data = %v", got)
	}
}
