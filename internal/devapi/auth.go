package devapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nilcar/leads-console/internal/store"
	"github.com/nilcar/leads-console/internal/validate"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required,notblank"`
	Password   string `json:"password" binding:"required"`
}

// signupRequest leaves the email-or-phone rule and password strength to validate.Signup.
type signupRequest struct {
	Username    string `json:"username" binding:"required,notblank"`
	Email       string `json:"email" binding:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token       string `json:"token" binding:"required,notblank"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// HashPassword is the bcrypt hash used for every stored password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.FindUserByIdentifier(ctx, req.Identifier)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.audit(ctx, "login_failed", "anonymous", strings.TrimSpace(req.Identifier), nil)
		respondError(c, http.StatusUnauthorized, "Usuário ou senha inválidos.")
		return
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, validate.NormalizeRole(user.Role))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.audit(ctx, "login", user.Username, "", nil)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) validateSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"username": c.GetString(ctxUsername),
		"role":     "ROLE_" + c.GetString(ctxRole),
	})
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	form := validate.Signup{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.PhoneNumber,
		Password: req.Password,
		Role:     req.Role,
	}
	if err := form.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user := store.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PhoneNumber:  validate.Digits(req.PhoneNumber),
		Role:         validate.NormalizeRole(req.Role),
		PasswordHash: hash,
	}

	ctx := c.Request.Context()
	id, err := s.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrConflict) {
		respondError(c, http.StatusConflict, "Usuário já cadastrado.")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}
	user.ID = id
	s.audit(ctx, "signup", actor(c), user.Username, map[string]interface{}{"role": user.Role})
	c.JSON(http.StatusCreated, user)
}

// forgotPassword answers 200 whether or not the email exists.
func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.FindUserByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Printf("password recovery requested for unknown email")
	case err != nil:
		s.logger.Printf("password recovery lookup: %v", err)
	default:
		token := uuid.NewString()
		if err := s.store.CreatePasswordReset(ctx, token, user.ID, time.Now().Add(s.cfg.ResetTTL)); err != nil {
			s.logger.Printf("password recovery: %v", err)
			break
		}
		if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
			s.logger.Printf("password recovery delivery: %v", err)
		}
		s.audit(ctx, "password_reset_requested", "anonymous", user.Username, nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Se o e-mail estiver cadastrado, você receberá as instruções."})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}
	if msg := validate.Password(req.NewPassword); msg != "" {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	ctx := c.Request.Context()
	userID, err := s.store.ConsumePasswordReset(ctx, strings.TrimSpace(req.Token), time.Now())
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusBadRequest, "Token inválido ou expirado.")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := s.store.SetPasswordHash(ctx, userID, hash); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	s.audit(ctx, "password_reset", "anonymous", "", map[string]interface{}{"user_id": userID})
	c.JSON(http.StatusOK, gin.H{"message": "Senha redefinida."})
}
