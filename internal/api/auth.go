package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nilcar/leads-console/internal/validate"
)

// Credentials is the login payload.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// SignupRequest registers a new user. Role is sent as ROLE_ADMIN or ROLE_USER.
type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// Validate checks the signup form before anything is sent.
func (r SignupRequest) Validate() error {
	return validate.Signup{
		Username: r.Username,
		Email:    r.Email,
		Phone:    r.PhoneNumber,
		Password: r.Password,
		Role:     r.Role,
	}.Validate()
}

// ResetRequest completes a password reset.
type ResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Validate asks the backend whether the current token is still valid.
// Any non-2xx answer is reported as an error.
func (c *Client) Validate(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/validate", nil, nil, nil)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	if err := validate.Login(creds.Identifier, creds.Password); err != nil {
		return "", err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth", nil, creds, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", &DecodeError{Endpoint: "POST /auth", Err: fmt.Errorf("token missing")}
	}
	return resp.Token, nil
}

// Signup creates a user. The form is validated first and nothing is sent when it fails.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Role = "ROLE_" + validate.NormalizeRole(req.Role)
	return c.do(ctx, http.MethodPost, "/auth/signup", nil, req, nil)
}

// ForgotPassword requests a recovery email. Callers show the same confirmation
// whatever the outcome so account existence is not revealed.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if msg := validate.Email(email); msg != "" {
		return validate.Errors{"email": msg}
	}
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/password-recovery/forgot-password", nil, body, nil)
}

// ResetPassword sets a new password using a recovery token.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := (validate.Reset{Token: token, Password: password, Confirm: confirm}).Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", nil, ResetRequest{Token: strings.TrimSpace(token), NewPassword: password}, nil)
}
