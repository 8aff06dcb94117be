package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/launcher-backend/internal/domain"
	"github.com/launcher-backend/internal/service"
	"github.com/launcher-backend/internal/websocket"
)

// Handler provides HTTP handlers for the launcher API
type Handler struct {
	service *service.LauncherService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.LauncherService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Root info route
	r.Get("/", h.Index)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// Legacy launcher route; shipping launchers parse these bodies
	r.Get("/api/getVersions/{game}/{email}", h.GetVersions)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Account operations
		r.Post("/accounts/register", h.Register)
		r.Post("/accounts/login", h.Login)

		// User directory and starred channels
		r.Get("/users", h.GetUsers)
		r.Get("/users/{email}/starred", h.GetStarredChannels)

		// Channel operations
		r.Route("/channels", func(r chi.Router) {
			r.Get("/", h.ListChannels)
			r.Post("/", h.CreateChannel)

			r.Route("/{channelName}", func(r chi.Router) {
				r.Get("/", h.GetChannel)
				r.Delete("/", h.DeleteChannel)
				r.Get("/motd", h.GetMOTD)
				r.Put("/motd", h.SetMOTD)
				r.Post("/star", h.StarChannel)
				r.Post("/unstar", h.UnstarChannel)
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// Index describes the API for anyone poking at the root route
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "This is the api for the cloudmesh launcher, the / route isn't used for anything, please use /api/getVersions/:game/:email instead",
		"routes": map[string]string{
			"getVersions": "/api/getVersions/GAMENAME/EMAIL",
		},
	})
}

// GetVersions gates build access by the account's wave rank. The
// response bodies are a wire contract with deployed launchers and must
// not change shape.
func (h *Handler) GetVersions(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	email := chi.URLParam(r, "email")

	grant, err := h.service.ResolveAccess(r.Context(), game, email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedGame):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid game (at the moment)"})
		case errors.Is(err, domain.ErrAccountNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		default:
			h.logger.Error("failed to resolve build access", "game", game, "error", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}
		return
	}

	h.writeJSON(w, http.StatusOK, grant)
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// RegisterRequest is the account registration payload
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse echoes the public fields of the new account
type RegisterResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Wave      int    `json:"wave"`
	CreatedAt string `json:"createdAt"`
}

// Register handles account registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	account, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrAccountExists):
			h.writeError(w, http.StatusConflict, err)
		default:
			h.logger.Error("failed to register account", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data: RegisterResponse{
			Username:  account.Username,
			Email:     account.Email,
			Wave:      account.Wave,
			CreatedAt: account.CreatedAt.Format(time.RFC3339),
		},
	})
}

// LoginRequest is the credential check payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles credential verification
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.logger.Error("failed to verify credentials", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "ok"})
}

// GetUsers returns all usernames partitioned into staff and backers
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	directory, err := h.service.UserDirectory(r.Context())
	if err != nil {
		h.logger.Error("failed to build user directory", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, directory)
}

// GetStarredChannels returns the channels an account has starred
func (h *Handler) GetStarredChannels(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	channels, err := h.service.StarredChannels(r.Context(), email)
	if err != nil {
		h.logger.Error("failed to get starred channels", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, channels)
}

// ListChannels returns every known channel
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.service.ListChannels(r.Context())
	if err != nil {
		h.logger.Error("failed to list channels", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	if channels == nil {
		channels = []string{}
	}

	h.writeSuccess(w, channels)
}

// CreateChannelRequest is the channel creation payload
type CreateChannelRequest struct {
	Name string `json:"name"`
}

// CreateChannel creates a channel namespace
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.CreateChannel(r.Context(), req.Name); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to create channel", "channel", req.Name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"name": req.Name, "status": "created"},
	})
}

// GetChannel reports a channel's existence
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	exists, err := h.service.ChannelExists(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to check channel", "channel", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, domain.ChannelInfo{Name: name, Exists: exists})
}

// DeleteChannel removes a channel and everything in it
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.DeleteChannel(r.Context(), name); err != nil {
		h.logger.Error("failed to delete channel", "channel", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// GetMOTD returns a channel's message of the day
func (h *Handler) GetMOTD(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	motd, err := h.service.MOTD(r.Context(), name)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get motd", "channel", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, motd)
}

// SetMOTDRequest is the MOTD upsert payload
type SetMOTDRequest struct {
	Message string `json:"message"`
}

// SetMOTD upserts a channel's message of the day
func (h *Handler) SetMOTD(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channelName")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req SetMOTDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	motd, err := h.service.SetMOTD(r.Context(), name, req.Message)
	if err != nil {
		h.logger.Error("failed to set motd", "channel", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, motd)
}

// StarRequest names the account starring or unstarring a channel
type StarRequest struct {
	Email string `json:"email"`
}

// StarChannel adds a channel to an account's starred set
func (h *Handler) StarChannel(w http.ResponseWriter, r *http.Request) {
	h.updateStar(w, r, true)
}

// UnstarChannel removes a channel from an account's starred set
func (h *Handler) UnstarChannel(w http.ResponseWriter, r *http.Request) {
	h.updateStar(w, r, false)
}

func (h *Handler) updateStar(w http.ResponseWriter, r *http.Request, starred bool) {
	name := chi.URLParam(r, "channelName")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.StarChannel(r.Context(), req.Email, name, starred); err != nil {
		h.logger.Error("failed to update starred channels", "channel", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "ok"})
}
