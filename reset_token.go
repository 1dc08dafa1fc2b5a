package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultResetTokenTTL bounds how long a password reset link stays valid.
const DefaultResetTokenTTL = 72 * time.Hour

var resetTokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

const resetDigestLength = 40

// ResetTokenGenerator derives stateless password reset tokens from a secret
// and the credential state of an account. Changing the password hash, the
// last login marker or the email invalidates every token minted before.
type ResetTokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

// NewResetTokenGenerator returns a generator keyed by secret. A non-positive
// ttl falls back to DefaultResetTokenTTL.
func NewResetTokenGenerator(secret string, ttl time.Duration, clock Clock) *ResetTokenGenerator {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    normalizeClock(clock),
	}
}

// MakeToken returns a reset token for holder valid from now.
func (g *ResetTokenGenerator) MakeToken(holder CredentialHolder) string {
	return g.makeTokenAt(holder, g.secondsSinceEpoch(g.now()))
}

// CheckToken reports whether token was minted for holder's current
// credential state and has not aged past the ttl.
func (g *ResetTokenGenerator) CheckToken(holder CredentialHolder, token string) bool {
	if holder == nil || token == "" {
		return false
	}

	tsPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	expected := g.makeTokenAt(holder, ts)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return false
	}

	age := g.secondsSinceEpoch(g.now()) - ts
	return age <= int64(g.ttl/time.Second)
}

func (g *ResetTokenGenerator) makeTokenAt(holder CredentialHolder, ts int64) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(g.fingerprint(holder, ts)))
	digest := hex.EncodeToString(mac.Sum(nil))
	return strconv.FormatInt(ts, 36) + "-" + digest[:resetDigestLength]
}

func (g *ResetTokenGenerator) fingerprint(holder CredentialHolder, ts int64) string {
	ref := holder.Ref()

	lastLogin := ""
	if at := holder.GetLastLoginAt(); at != nil {
		lastLogin = strconv.FormatInt(at.UTC().Truncate(time.Second).Unix(), 10)
	}

	return strings.Join([]string{
		string(ref.Kind),
		ref.ID,
		holder.GetPasswordHash(),
		lastLogin,
		strconv.FormatInt(ts, 10),
		NormalizeEmail(holder.GetEmail()),
	}, "|")
}

func (g *ResetTokenGenerator) secondsSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(resetTokenEpoch) / time.Second)
}

// EncodeUID encodes an account id for reset links.
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUID reverses EncodeUID. Padded input is accepted.
func DecodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(uid), "="))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
