package public

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	helpfulCookieName   = "cc_helpful_voter"
	helpfulCookieTTL    = 180 * 24 * time.Hour
	helpfulCookieMaxAge = int(helpfulCookieTTL / time.Second)
)

// ensureHelpfulVoterID returns the anonymous voter id from the signed cookie,
// issuing a fresh one when the cookie is missing, tampered or stale.
func (h *Handler) ensureHelpfulVoterID(w http.ResponseWriter, r *http.Request) (string, error) {
	if len(h.helpfulCookieSecret) == 0 {
		return "", errors.New("helpful voter secret not configured")
	}
	if cookie, err := r.Cookie(helpfulCookieName); err == nil {
		if voterID, issuedAt, ok := h.parseHelpfulCookie(cookie.Value); ok && h.now().Sub(issuedAt) < helpfulCookieTTL {
			return voterID, nil
		}
	}
	voterID := primitive.NewObjectID().Hex()
	h.issueHelpfulCookie(w, voterID)
	return voterID, nil
}

func (h *Handler) issueHelpfulCookie(w http.ResponseWriter, voterID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     helpfulCookieName,
		Value:    h.signHelpfulCookie(voterID, h.now().UTC()),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.helpfulCookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   helpfulCookieMaxAge,
	})
}

func (h *Handler) signHelpfulCookie(voterID string, issuedAt time.Time) string {
	payload := fmt.Sprintf("v=%s&ts=%d", voterID, issuedAt.Unix())
	return payload + "&sig=" + h.helpfulSignature(payload)
}

func (h *Handler) helpfulSignature(payload string) string {
	mac := hmac.New(sha256.New, h.helpfulCookieSecret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) parseHelpfulCookie(raw string) (string, time.Time, bool) {
	values := make(map[string]string, 3)
	for _, part := range strings.Split(raw, "&") {
		key, value, found := strings.Cut(part, "=")
		if found {
			values[key] = value
		}
	}
	voterID, timestamp, sig := values["v"], values["ts"], values["sig"]
	if voterID == "" || timestamp == "" || sig == "" {
		return "", time.Time{}, false
	}

	expected := h.helpfulSignature(fmt.Sprintf("v=%s&ts=%s", voterID, timestamp))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", time.Time{}, false
	}
	if _, err := primitive.ObjectIDFromHex(voterID); err != nil {
		return "", time.Time{}, false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return voterID, time.Unix(ts, 0), true
}
