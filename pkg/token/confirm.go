package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfirmSigner creates and validates the tokens that protect the two-step
// unenrol-child confirmation flow against forged or replayed requests.
type ConfirmSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewConfirmSigner constructs a signer with the provided secret and TTL.
func NewConfirmSigner(secret string, ttl time.Duration) *ConfirmSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ConfirmSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed token binding the acting parent, the enrolment
// instance and the child being unenrolled.
func (s *ConfirmSigner) Generate(instanceID, parentID, childID int64) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	payload := fmt.Sprintf("%d|%d|%d|%d", instanceID, parentID, childID, expiresAt.Unix())
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	token := strings.Join([]string{
		strconv.FormatInt(instanceID, 10),
		strconv.FormatInt(parentID, 10),
		strconv.FormatInt(childID, 10),
		strconv.FormatInt(expiresAt.Unix(), 10),
		signature,
	}, ".")
	return token, expiresAt, nil
}

// Verify checks the token signature and expiry against the expected triple.
func (s *ConfirmSigner) Verify(raw string, instanceID, parentID, childID int64) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 5 {
		return fmt.Errorf("invalid token format")
	}
	for i, want := range []int64{instanceID, parentID, childID} {
		got, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil || got != want {
			return fmt.Errorf("token does not match request")
		}
	}
	expUnix, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token timestamp")
	}

	payload := fmt.Sprintf("%s|%s|%s|%s", parts[0], parts[1], parts[2], parts[3])
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[4])) {
		return fmt.Errorf("invalid token signature")
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return fmt.Errorf("token expired")
	}
	return nil
}
