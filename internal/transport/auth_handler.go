package transport

import (
	"net/http"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/middleware"
	"tpv-haido/internal/service"
	"tpv-haido/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest is the operator login payload.
type LoginRequest struct {
	UserID int64  `json:"userId" validate:"required"`
	PIN    string `json:"pin" validate:"required,len=4,numeric"`
}

// LoginResponse carries the issued token and the operator profile.
type LoginResponse struct {
	Token string          `json:"token"`
	User  OperatorProfile `json:"user"`
}

// OperatorProfile is the public shape of an operator account.
type OperatorProfile struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// UserRequest is the create/update payload for operator accounts. PIN
// carries the bcrypt hash, not the plaintext: these routes are raw storage
// passthrough so the http adapter round-trips accounts unchanged. Use
// RegisterRequest to create an account from a plaintext PIN.
type UserRequest struct {
	ID             int64  `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	PIN            string `json:"pin" validate:"required"`
	ProfilePicture string `json:"profilePicture"`
}

// RegisterRequest creates an operator account from a plaintext PIN.
type RegisterRequest struct {
	ID             int64  `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	PIN            string `json:"pin" validate:"required,len=4,numeric"`
	ProfilePicture string `json:"profilePicture"`
}

// AuthHandler handles operator login and account management.
type AuthHandler struct {
	authService *service.AuthService
	adapter     storage.Adapter
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, adapter storage.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, adapter: adapter, logger: logger}
}

// RegisterRoutes registers auth and operator-account routes. The /users
// routes stay on the open storage surface with the other collections so
// the http adapter can round-trip accounts between backends.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/operators", h.Operators)
		r.Post("/register", h.Register)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Put("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})
}

func (h *AuthHandler) userStore(w http.ResponseWriter) (storage.UserStore, bool) {
	users, ok := h.adapter.(storage.UserStore)
	if !ok {
		middleware.RespondWithError(w, http.StatusNotImplemented, "active backend does not store users")
		return nil, false
	}
	return users, true
}

// Login authenticates an operator PIN and issues a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.UserID, req.PIN)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		switch err {
		case service.ErrInvalidCredentials:
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid operator or pin")
		case service.ErrUsersUnsupported:
			middleware.RespondWithError(w, http.StatusNotImplemented, "active backend does not store users")
		default:
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	h.logger.Info("Operator logged in", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  OperatorProfile{ID: user.ID, Name: user.Name, ProfilePicture: user.ProfilePicture},
	})
}

// Operators lists the accounts selectable on the login screen.
func (h *AuthHandler) Operators(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.Operators(r.Context())
	if err != nil {
		if err == service.ErrUsersUnsupported {
			middleware.RespondWithError(w, http.StatusNotImplemented, "active backend does not store users")
			return
		}
		respondStorageError(w, h.logger, "load operators", err)
		return
	}

	profiles := make([]OperatorProfile, len(users))
	for i, u := range users {
		profiles[i] = OperatorProfile{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
	}
	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

// ListUsers returns the full user collection, PIN hashes included; this
// route serves the http storage adapter, which needs the hashes to keep
// backends interchangeable.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, ok := h.userStore(w)
	if !ok {
		return
	}
	all, err := users.GetUsers(r.Context())
	if err != nil {
		respondStorageError(w, h.logger, "load users", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, all)
}

// Register creates an operator account from a plaintext PIN.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	users, ok := h.userStore(w)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Register validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hash, err := service.HashPIN(req.PIN)
	if err != nil {
		h.logger.Error("PIN hashing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := domain.User{ID: req.ID, Name: req.Name, PIN: hash, ProfilePicture: req.ProfilePicture}
	if err := users.CreateUser(r.Context(), user); err != nil {
		respondStorageError(w, h.logger, "create user", err)
		return
	}

	h.logger.Info("Operator account registered", zap.Int64("id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, OperatorProfile{
		ID: user.ID, Name: user.Name, ProfilePicture: user.ProfilePicture,
	})
}

// CreateUser stores an operator account exactly as posted.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	users, ok := h.userStore(w)
	if !ok {
		return
	}

	var req UserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("User validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := domain.User{ID: req.ID, Name: req.Name, PIN: req.PIN, ProfilePicture: req.ProfilePicture}
	if err := users.CreateUser(r.Context(), user); err != nil {
		respondStorageError(w, h.logger, "create user", err)
		return
	}

	h.logger.Info("Operator account created", zap.Int64("id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, user)
}

// UpdateUser replaces an operator account as posted.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	users, ok := h.userStore(w)
	if !ok {
		return
	}

	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := domain.User{ID: id, Name: req.Name, PIN: req.PIN, ProfilePicture: req.ProfilePicture}
	if err := users.UpdateUser(r.Context(), user); err != nil {
		respondStorageError(w, h.logger, "update user", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}

// DeleteUser deletes an operator account. Deleting an unknown id succeeds.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	users, ok := h.userStore(w)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := users.DeleteUser(r.Context(), id); err != nil {
		respondStorageError(w, h.logger, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
