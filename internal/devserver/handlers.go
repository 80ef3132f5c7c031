/*
Package devserver embeds a self-contained companion backend for development builds.

This file provides the HTTP handler functions: account endpoints (login, register,
profile), the chat polling fallback endpoints, and the content catalog endpoints.
*/
package devserver

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/proedition/mucompanion/internal/app/catalog"
	"github.com/proedition/mucompanion/internal/app/chat"
	"github.com/proedition/mucompanion/internal/pkg/auth/jwt"
	"github.com/proedition/mucompanion/internal/pkg/errs"
	"github.com/proedition/mucompanion/internal/pkg/logx"
	"github.com/proedition/mucompanion/internal/pkg/req"
	"github.com/proedition/mucompanion/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// LoginInput is the credential-exchange request body.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies the credential pair and issues a session token.
func HandleLogin(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Username == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingCredentials))
			return
		}

		identity, customErr := s.accounts.authenticate(input.Username, input.Password)
		if customErr != nil {
			logx.Warn("Login rejected.", "username", input.Username)
			resp.RespondError(w, r, customErr)
			return
		}

		payload := &jwt.Payload{
			UserID:   identity.ID,
			Username: identity.Username,
		}

		token, err := jwt.GenerateToken(payload, s.jwtSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "Login: token generation failed.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  identity,
		})
	}
}

// RegisterInput is the account-creation request body.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new account. It validates the username format and
// password length before touching the registry.
func HandleRegister(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 4 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		if !strings.Contains(input.Email, "@") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		identity, customErr := s.accounts.create(input.Username, input.Email, input.Password)
		if customErr != nil {
			logx.Warn("Registration rejected.", "username", input.Username, "reason", customErr.Message)
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Account created.", "username", identity.Username, "user_id", identity.ID)

		resp.RespondSuccess(w, r, map[string]string{
			"message": "Account created successfully.",
		})
	}
}

// HandleGetUserProfile returns the authenticated account's identity.
func HandleGetUserProfile(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		identity, ok := s.accounts.lookup(payload.UserID)
		if !ok {
			logx.Warn("Profile lookup failed.", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		resp.RespondSuccess(w, r, identity)
	}
}

// HandleChatHistory serves the recent message window for the polling fallback.
func HandleChatHistory(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		region := r.URL.Query().Get("region")

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}

		messages, stats := s.hub.History(region, limit)

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
			"stats":    stats,
		})
	}
}

// HandleChatSend accepts a chat message over HTTP for clients in polling mode.
func HandleChatSend(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg chat.Message
		if customErr := req.BindJSON(r, &msg); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg.Text = strings.TrimSpace(msg.Text)
		if msg.Text == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageEmpty))
			return
		}
		if utf8.RuneCountInString(msg.Text) > s.maxMessageLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageTooLong, s.maxMessageLength))
			return
		}

		now := time.Now()
		msg.Kind = chat.KindUser
		if msg.ID == 0 {
			msg.ID = now.UnixMilli()
		}
		if msg.Timestamp == "" {
			msg.Timestamp = now.UTC().Format(time.RFC3339)
		}

		s.hub.Submit(msg)

		resp.RespondSuccess(w, r, msg)
	}
}

// HandleShopItems serves the item shop listing.
func HandleShopItems(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, shopItems)
	}
}

// HandleVIPTiers serves the VIP tier listing.
func HandleVIPTiers(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, vipTiers)
	}
}

// HandleServerStatus serves the live server status summary. The player count
// folds in the chat channel's presence so it moves as clients connect.
func HandleServerStatus(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.hub.Stats()

		status := catalog.ServerStatus{
			Status:        "online",
			OnlinePlayers: basePlayerCount + stats.OnlineUsers,
			Uptime:        formatUptime(time.Since(s.startedAt)),
			Version:       serverVersion,
		}

		resp.RespondSuccess(w, r, status)
	}
}

// formatUptime renders a duration as "1d 4h 07m".
func formatUptime(d time.Duration) string {
	d = d.Round(time.Minute)

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %02dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}
