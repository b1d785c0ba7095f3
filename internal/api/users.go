package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nilcar/leads-console/internal/validate"
)

// User is an account as managed by administrators.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return validate.NormalizeRole(u.Role) == validate.RoleAdmin
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		return nil, &DecodeError{Endpoint: "GET /users", Err: fmt.Errorf("expected a list")}
	}
	return users, nil
}

// UpdateUser sends the whole record; the backend identifies it by ID.
func (c *Client) UpdateUser(ctx context.Context, u User) (*User, error) {
	if u.ID == 0 {
		return nil, validate.Errors{"id": "Usuário sem identificador."}
	}
	if strings.TrimSpace(u.Username) == "" {
		return nil, validate.Errors{"username": "Usuário é obrigatório."}
	}
	u.Role = validate.NormalizeRole(u.Role)
	var out User
	if err := c.do(ctx, http.MethodPut, "/users", nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
