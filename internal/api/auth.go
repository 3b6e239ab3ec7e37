package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	Message string      `json:"message"`
	User    domain.User `json:"user"`
	Token   string      `json:"token"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, route: "/auth/register", path: "/auth/register", body: req, public: true}, &resp)
	return resp, err
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, request{method: http.MethodPost, route: "/auth/login", path: "/auth/login", body: req, public: true}, &resp)
	return resp, err
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, request{method: http.MethodGet, route: "/auth/me", path: "/auth/me"}, &user)
	return user, err
}
