// Package api exposes the administrative HTTP interface for managing users,
// preferences, and the code inventory.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"shift-code-redeemer/internal/model"
	"shift-code-redeemer/internal/repository"
)

type codeStore interface {
	List(ctx context.Context) ([]*model.Code, error)
	GetByValue(ctx context.Context, code string) ([]*model.Code, error)
	Delete(ctx context.Context, id int64) error
}

type userStore interface {
	Create(ctx context.Context, email string, encryptedPassword []byte) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Delete(ctx context.Context, id int64) error
	ClearNotifyMustLaunchGame(ctx context.Context, id int64) error
}

type preferenceStore interface {
	Upsert(ctx context.Context, userID int64, game, platform string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.GamePreference, error)
	Delete(ctx context.Context, userID int64, game, platform string) error
}

type attemptStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*model.CodeAttempt, error)
}

type encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
}

// Server wires the admin routes onto a gin engine.
type Server struct {
	codes    codeStore
	users    userStore
	prefs    preferenceStore
	attempts attemptStore
	secrets  encrypter
	engine   *gin.Engine
}

// NewServer creates a new Server instance and registers all routes.
func NewServer(codes codeStore, users userStore, prefs preferenceStore, attempts attemptStore, secrets encrypter) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		codes:    codes,
		users:    users,
		prefs:    prefs,
		attempts: attempts,
		secrets:  secrets,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/codes", s.listCodes)
		api.GET("/codes/:code", s.getCode)
		api.DELETE("/codes/:id", s.deleteCode)

		api.POST("/users", s.createUser)
		api.GET("/users", s.listUsers)
		api.GET("/users/:id", s.getUser)
		api.DELETE("/users/:id", s.deleteUser)
		api.POST("/users/:id/resume", s.resumeUser)

		api.GET("/users/:id/preferences", s.listPreferences)
		api.POST("/users/:id/preferences", s.addPreference)
		api.DELETE("/users/:id/preferences", s.deletePreference)

		api.GET("/users/:id/attempts", s.listAttempts)
	}
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", addr).Msg("admin API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// userResponse is the wire form of a user. The encrypted password never
// leaves the service.
type userResponse struct {
	ID                   int64     `json:"id"`
	PortalEmail          string    `json:"portal_email"`
	NotifyMustLaunchGame bool      `json:"notify_must_launch_game"`
	CreatedAt            time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                   u.ID,
		PortalEmail:          u.PortalEmail,
		NotifyMustLaunchGame: u.NotifyMustLaunchGame,
		CreatedAt:            u.CreatedAt,
	}
}

func (s *Server) listCodes(c *gin.Context) {
	codes, err := s.codes.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

func (s *Server) getCode(c *gin.Context) {
	codes, err := s.codes.GetByValue(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(codes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
		return
	}
	c.JSON(http.StatusOK, codes)
}

func (s *Server) deleteCode(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.codes.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sealed, err := s.secrets.Encrypt([]byte(req.Password))
	if err != nil {
		s.fail(c, err)
		return
	}

	user, err := s.users.Create(c.Request.Context(), req.Email, sealed)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := s.users.GetByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.users.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resumeUser clears the must-launch flag after the user has launched a title.
func (s *Server) resumeUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.users.ClearNotifyMustLaunchGame(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type preferenceRequest struct {
	Game     string `json:"game" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

func (s *Server) listPreferences(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	prefs, err := s.prefs.ListByUser(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) addPreference(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.prefs.Upsert(c.Request.Context(), id, req.Game, req.Platform)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !created {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) deletePreference(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.prefs.Delete(c.Request.Context(), id, req.Game, req.Platform); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAttempts(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	attempts, err := s.attempts.ListByUser(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// fail maps store errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCodeNotFound),
		errors.Is(err, repository.ErrPreferenceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
