package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// handleVoiceToken mints a short-lived HS256 token for the realtime
// voice channel. A room name is generated when the client doesn't bring
// one.
func (s *Server) handleVoiceToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.VoiceTokenSecret == "" {
		writeError(w, http.StatusInternalServerError, "voice token secret not configured")
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "guest"
	}
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = fmt.Sprintf("room-%s", uuid.NewString()[:8])
	}

	ttl := s.cfg.VoiceTokenTTLSec
	if ttl <= 0 {
		ttl = 60
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   name,
		"room":  room,
		"scope": "member",
		"iat":   now.Unix(),
		"exp":   now.Unix() + int64(ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.VoiceTokenSecret))
	if err != nil {
		s.log.Error("token signing failed", err)
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"room":       room,
		"expires_in": ttl,
	})
}
