package dnaapi

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const secretChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// digestSwapPairs are the fixed index pairs swapped inside the uppercase MD5
// digest. The upstream client scrambles its signature this way; it has to be
// reproduced exactly or every signed request is rejected.
var digestSwapPairs = [][2]int{{1, 13}, {5, 17}, {7, 23}}

// Signature is the triple attached to every signed upstream request.
type Signature struct {
	Sign      string // obfuscated signature, goes into the request body
	Timestamp int64  // millisecond timestamp merged into the signed payload
	Secret    string // 16-char per-request secret, RSA-encrypted into a header
}

func TimestampMS() int64 {
	return time.Now().UnixMilli()
}

// DevCode returns a fresh device identifier, an uppercase UUID.
func DevCode() string {
	return strings.ToUpper(uuid.NewString())
}

// RandString returns n characters drawn from the upstream's alphanumeric
// secret alphabet using crypto/rand.
func RandString(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(secretChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// rand.Reader only fails if the platform entropy source is broken
			panic(fmt.Sprintf("dnaapi: random source unavailable: %v", err))
		}
		b.WriteByte(secretChars[idx.Int64()])
	}
	return b.String()
}

func MD5Upper(s string) string {
	return strings.ToUpper(fmt.Sprintf("%x", md5.Sum([]byte(s))))
}

// SignatureHash computes the scrambled digest: uppercase MD5 hex with the
// fixed character pairs swapped.
func SignatureHash(s string) string {
	chars := []byte(MD5Upper(s))
	for _, p := range digestSwapPairs {
		if p[0] < len(chars) && p[1] < len(chars) {
			chars[p[0]], chars[p[1]] = chars[p[1]], chars[p[0]]
		}
	}
	return string(chars)
}

// SignFI builds the canonical query string (keys ascending, empty values
// dropped), appends the secret and hashes it.
func SignFI(payload map[string]string, secret string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := payload[k]; v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	return SignatureHash(strings.Join(pairs, "&") + "&" + secret)
}

// XOREncode obfuscates the signature with the secret. Despite the name this
// is not XOR: each byte becomes "@" plus the decimal sum of the signature
// byte and the cycling key byte, concatenated. Kept byte-identical to the
// mobile client's output.
func XOREncode(text, key string) string {
	tb := []byte(text)
	kb := []byte(key)
	var b strings.Builder
	for i, c := range tb {
		b.WriteString(fmt.Sprintf("@%d", int(c)+int(kb[i%len(kb)])))
	}
	return b.String()
}

// BuildSignature merges payload with the current millisecond timestamp and
// the optional token, generates a per-request secret and signs the result.
func BuildSignature(payload map[string]string, token string) Signature {
	ts := TimestampMS()
	signData := make(map[string]string, len(payload)+2)
	for k, v := range payload {
		signData[k] = v
	}
	signData["timestamp"] = fmt.Sprintf("%d", ts)
	if token != "" {
		signData["token"] = token
	}

	secret := RandString(16)
	return Signature{
		Sign:      XOREncode(SignFI(signData, secret), secret),
		Timestamp: ts,
		Secret:    secret,
	}
}

// RSAEncrypt encrypts text with a PKCS#8 public key given as one-line base64
// (the format the key endpoint returns) using PKCS#1 v1.5 padding, and
// returns the ciphertext as base64.
func RSAEncrypt(text, publicKeyB64 string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyB64))
	if err != nil {
		return "", fmt.Errorf("dnaapi: malformed rsa public key: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return "", fmt.Errorf("dnaapi: failed to parse rsa public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("dnaapi: public key is %T, want *rsa.PublicKey", pub)
	}
	enc, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, []byte(text))
	if err != nil {
		return "", fmt.Errorf("dnaapi: rsa encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}
