// handlers/auth.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/models"
)

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

type loginResp struct {
	User         userPayload `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

func toUserPayload(u models.User) userPayload {
	return userPayload{ID: u.ID, Email: u.Email, Name: u.Name}
}

// isDuplicateKey recognizes a unique-constraint violation from either the
// postgres or the sqlite driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ValidationError{Msg: "invalid JSON"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, ValidationError{Msg: "email, password and name are required"})
		return
	}
	if len(req.Password) < 6 {
		writeError(w, ValidationError{Msg: "password must be at least 6 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, UpstreamError{Op: "hash password", Err: err})
		return
	}
	u := models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}
	if err := h.DB.Create(&u).Error; err != nil {
		if isDuplicateKey(err) {
			writeError(w, ValidationError{Msg: "email already registered"})
			return
		}
		writeError(w, UpstreamError{Op: "create user", Err: err})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserPayload(u)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ValidationError{Msg: "invalid JSON"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	var u models.User
	if err := h.DB.Where("email = ?", req.Email).First(&u).Error; err != nil {
		writeError(w, AuthError{Msg: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, AuthError{Msg: "invalid credentials"})
		return
	}

	token, err := h.Tokens.GenerateToken(u)
	if err != nil {
		writeError(w, UpstreamError{Op: "sign token", Err: err})
		return
	}
	refresh, err := h.Tokens.GenerateRefreshToken(u)
	if err != nil {
		writeError(w, UpstreamError{Op: "sign refresh token", Err: err})
		return
	}

	writeJSON(w, http.StatusOK, loginResp{
		User:         toUserPayload(u),
		Token:        token,
		RefreshToken: refresh,
	})
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a valid refresh token for a fresh access/refresh pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ValidationError{Msg: "invalid JSON"})
		return
	}

	claims, err := h.Tokens.Parse(req.RefreshToken)
	if err != nil || claims.Typ != "refresh" {
		writeError(w, AuthError{Msg: "invalid refresh token"})
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		writeError(w, AuthError{Msg: "invalid refresh token"})
		return
	}

	// Re-read the user so a deleted account can't keep refreshing.
	var u models.User
	if err := h.DB.First(&u, "id = ?", userID).Error; err != nil {
		writeError(w, AuthError{Msg: "invalid refresh token"})
		return
	}

	token, err := h.Tokens.GenerateToken(u)
	if err != nil {
		writeError(w, UpstreamError{Op: "sign token", Err: err})
		return
	}
	refresh, err := h.Tokens.GenerateRefreshToken(u)
	if err != nil {
		writeError(w, UpstreamError{Op: "sign refresh token", Err: err})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token, "refreshToken": refresh})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == uuid.Nil {
		writeError(w, AuthError{Msg: "not authenticated"})
		return
	}

	var u models.User
	if err := h.DB.First(&u, "id = ?", userID).Error; err != nil {
		writeError(w, dbError("user", err))
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(u))
}
