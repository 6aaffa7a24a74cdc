package dnaapi

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
)

func Test_SignatureHash(t *testing.T) {
	got := SignatureHash("hello=world&secret")
	if len(got) != 32 {
		t.Fatalf("SignatureHash() length = %d, want 32", len(got))
	}
	if got == MD5Upper("hello=world&secret") {
		t.Errorf("SignatureHash() returned the unscrambled digest")
	}

	// The swap pairs are disjoint, so applying them again restores the
	// plain digest.
	chars := []byte(got)
	for _, p := range digestSwapPairs {
		chars[p[0]], chars[p[1]] = chars[p[1]], chars[p[0]]
	}
	if string(chars) != MD5Upper("hello=world&secret") {
		t.Errorf("SignatureHash() swaps do not invert to the plain digest")
	}

	if again := SignatureHash("hello=world&secret"); again != got {
		t.Errorf("SignatureHash() not deterministic: %q vs %q", got, again)
	}
}

func Test_SignFI(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]string
		canon   string
	}{
		{
			name:    "SortsKeysAscending",
			payload: map[string]string{"mobile": "138", "code": "0000"},
			canon:   "code=0000&mobile=138",
		},
		{
			name:    "DropsEmptyValues",
			payload: map[string]string{"a": "1", "b": "", "c": "3"},
			canon:   "a=1&c=3",
		},
		{
			name:    "EmptyPayload",
			payload: map[string]string{},
			canon:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignFI(tt.payload, "s3cret")
			want := SignatureHash(tt.canon + "&s3cret")
			if got != want {
				t.Errorf("SignFI() = %q, want %q", got, want)
			}
		})
	}
}

func Test_XOREncode(t *testing.T) {
	tests := []struct {
		name string
		text string
		key  string
		want string
	}{
		{name: "SingleKeyByte", text: "AB", key: "k", want: "@172@173"},
		{name: "KeyCycles", text: "AAA", key: "ab", want: "@162@163@162"},
		{name: "EmptyText", text: "", key: "k", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := XOREncode(tt.text, tt.key); got != tt.want {
				t.Errorf("XOREncode(%q, %q) = %q, want %q", tt.text, tt.key, got, tt.want)
			}
		})
	}
}

func Test_RandString(t *testing.T) {
	got := RandString(16)
	if len(got) != 16 {
		t.Fatalf("RandString(16) length = %d", len(got))
	}
	for _, c := range got {
		if !strings.ContainsRune(secretChars, c) {
			t.Errorf("RandString() produced %q outside the secret alphabet", c)
		}
	}
	if RandString(16) == got {
		t.Errorf("RandString() returned the same 16-char secret twice")
	}
}

func Test_BuildSignature(t *testing.T) {
	payload := map[string]string{"gameId": "268"}
	si := BuildSignature(payload, "tok")

	if len(si.Secret) != 16 {
		t.Fatalf("BuildSignature() secret length = %d, want 16", len(si.Secret))
	}
	if si.Timestamp <= 0 {
		t.Fatalf("BuildSignature() timestamp = %d", si.Timestamp)
	}

	// Recompute the sign from the returned secret and timestamp.
	signData := map[string]string{
		"gameId":    "268",
		"timestamp": strconv.FormatInt(si.Timestamp, 10),
		"token":     "tok",
	}
	want := XOREncode(SignFI(signData, si.Secret), si.Secret)
	if si.Sign != want {
		t.Errorf("BuildSignature() sign = %q, want %q", si.Sign, want)
	}
}

func Test_RSAEncrypt(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pub := base64.StdEncoding.EncodeToString(der)

	enc, err := RSAEncrypt("per-request-secret", pub)
	if err != nil {
		t.Fatalf("RSAEncrypt() error = %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("ciphertext is not base64: %v", err)
	}
	plain, err := rsa.DecryptPKCS1v15(nil, key, raw)
	if err != nil {
		t.Fatalf("DecryptPKCS1v15: %v", err)
	}
	if string(plain) != "per-request-secret" {
		t.Errorf("roundtrip = %q, want %q", plain, "per-request-secret")
	}
}

func Test_RSAEncrypt_MalformedKey(t *testing.T) {
	if _, err := RSAEncrypt("x", "not base64!!"); err == nil {
		t.Errorf("RSAEncrypt() with garbage key returned nil error")
	}
	if _, err := RSAEncrypt("x", base64.StdEncoding.EncodeToString([]byte("not der"))); err == nil {
		t.Errorf("RSAEncrypt() with non-DER key returned nil error")
	}
}

func Test_DevCode(t *testing.T) {
	code := DevCode()
	if len(code) != 36 {
		t.Fatalf("DevCode() length = %d, want 36", len(code))
	}
	if code != strings.ToUpper(code) {
		t.Errorf("DevCode() = %q, want uppercase", code)
	}
}
