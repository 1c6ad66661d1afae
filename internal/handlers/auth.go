package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/kestrelchat/kestrel/internal/domain"
	"github.com/kestrelchat/kestrel/internal/token"
)

// Response bodies follow the frontend contract: a bare token string on
// success, a short reason on failure.
const (
	msgUsernameTaken     = "Username Taken"
	msgInvalidUsername   = "Invalid Username"
	msgIncorrectPassword = "Incorrect Password"
)

type createAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler handles account creation and login. Both endpoints return a
// freshly issued token as the response body.
type AuthHandler struct {
	users    domain.UserRepository
	tokens   *token.Authority
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users domain.UserRepository, tokens *token.Authority) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// CreateAccount handles POST /api/create-account.
func (h *AuthHandler) CreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Malformed request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid username or password")
	}

	ctx := c.Request().Context()

	exists, err := h.users.Contains(ctx, req.Username)
	if err != nil {
		slog.Error("Failed to check username availability", "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}
	if exists {
		return c.String(http.StatusConflict, msgUsernameTaken)
	}

	salt, err := token.NewSalt()
	if err != nil {
		slog.Error("Failed to generate salt", "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: token.HashPassword(req.Password, salt),
		Salt:         salt,
	}
	if err := h.users.Add(ctx, user); err != nil {
		// The store enforces uniqueness; a concurrent signup can still
		// lose the race after the Contains check above.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return c.String(http.StatusConflict, msgUsernameTaken)
		}
		slog.Error("Failed to store user", "username", req.Username, "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}

	slog.Info("Account created", "username", req.Username)
	return h.issueToken(c, req.Username)
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Malformed request")
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid username or password")
	}

	user, err := h.users.Get(c.Request().Context(), req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.String(http.StatusConflict, msgInvalidUsername)
		}
		slog.Error("Failed to look up user", "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}

	hash := token.HashPassword(req.Password, user.Salt)
	if subtle.ConstantTimeCompare(hash, user.PasswordHash) != 1 {
		slog.Warn("Failed login attempt", "username", req.Username)
		return c.String(http.StatusForbidden, msgIncorrectPassword)
	}

	slog.Info("User logged in", "username", req.Username)
	return h.issueToken(c, req.Username)
}

func (h *AuthHandler) issueToken(c echo.Context, username string) error {
	t, err := h.tokens.Issue(username)
	if err != nil {
		slog.Error("Failed to issue token", "username", username, "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}
	return c.String(http.StatusOK, t)
}
