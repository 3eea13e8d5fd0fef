package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
	"github.com/mikeboe/filesearch-dashboard/pkg/session"
)

type Handler struct {
	Service *Service
	MCP     *MCPServer
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s, MCP: NewMCPServer(s)}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.POST("/mcp", h.MCP.Handle)
	r.DELETE("/mcp", h.MCP.Close)
	api := r.Group("/api")
	{
		api.POST("/sessions", h.createSession)

		sessions := api.Group("/sessions/:sid")
		sessions.GET("", h.getSession)
		sessions.DELETE("", h.deleteSession)

		// Store Routes
		sessions.GET("/stores", h.listStores)
		sessions.POST("/stores", h.createStore)
		sessions.PUT("/stores/active", h.selectStore)
		sessions.DELETE("/stores/active", h.deleteActiveStore)

		// Document Routes
		sessions.GET("/documents", h.listDocuments)
		sessions.POST("/documents", h.uploadDocuments)
		sessions.DELETE("/documents", h.deleteDocuments)

		sessions.POST("/ask", h.ask)

		// History Routes
		sessions.GET("/history", h.getHistory)
		sessions.GET("/uploads", h.getUploads)
		sessions.GET("/logs", h.getLogs)
	}
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, filesearch.ErrNoActiveStore):
		return http.StatusConflict
	case errors.Is(err, filesearch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, filesearch.ErrEmptyQuery), errors.Is(err, ErrNoAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoDatabase):
		return http.StatusNotImplemented
	case filesearch.IsRemote(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

// withSession resolves the session id and runs fn under its lock. fn writes
// the success response; errors are mapped by statusFor.
func (h *Handler) withSession(c *gin.Context, fn func(sess *session.Session) error) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.Service.With(id, fn); err != nil {
		abortWithError(c, err)
	}
}

func (h *Handler) health(c *gin.Context) {
	status := gin.H{"status": "ok", "database": "disabled"}
	if h.Service.DB != nil {
		if err := h.Service.DB.Ping(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := gemini.ResolveModel(req.Model); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.Service.CreateSession(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (h *Handler) getSession(c *gin.Context) {
	h.withSession(c, func(sess *session.Session) error {
		c.JSON(http.StatusOK, sess.Snapshot())
		return nil
	})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.Service.CloseSession(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listStores(c *gin.Context) {
	h.withSession(c, func(sess *session.Session) error {
		stores, err := sess.ListStores(c.Request.Context())
		if err != nil {
			return err
		}
		// Return empty list instead of null
		if stores == nil {
			stores = []filesearch.Store{}
		}
		c.JSON(http.StatusOK, stores)
		return nil
	})
}

func (h *Handler) createStore(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	// An empty body falls back to the default display name
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.withSession(c, func(sess *session.Session) error {
		store, err := sess.CreateStore(c.Request.Context(), req.DisplayName)
		if err != nil {
			return err
		}
		c.JSON(http.StatusCreated, store)
		return nil
	})
}

func (h *Handler) selectStore(c *gin.Context) {
	var req struct {
		StoreID string `json:"store_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.withSession(c, func(sess *session.Session) error {
		if err := sess.SelectStoreByID(c.Request.Context(), req.StoreID); err != nil {
			return err
		}
		c.JSON(http.StatusOK, sess.Snapshot())
		return nil
	})
}

func (h *Handler) deleteActiveStore(c *gin.Context) {
	h.withSession(c, func(sess *session.Session) error {
		if err := sess.DeleteActiveStore(c.Request.Context()); err != nil {
			return err
		}
		c.JSON(http.StatusOK, sess.Snapshot())
		return nil
	})
}

func (h *Handler) listDocuments(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	h.withSession(c, func(sess *session.Session) error {
		if !refresh {
			if sess.Active() == nil {
				return filesearch.ErrNoActiveStore
			}
			c.JSON(http.StatusOK, sess.Documents())
			return nil
		}

		docs, err := sess.RefreshDocuments(c.Request.Context())
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, docs)
		return nil
	})
}

func (h *Handler) uploadDocuments(c *gin.Context) {
	if limit := h.Service.Cfg.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files"})
		return
	}

	files := make([]session.FileInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return
		}
		files = append(files, session.FileInput{Filename: fh.Filename, Data: data})
	}

	h.withSession(c, func(sess *session.Session) error {
		results, err := sess.UploadBatch(c.Request.Context(), files)
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, gin.H{
			"results":   results,
			"documents": sess.Documents(),
		})
		return nil
	})
}

func (h *Handler) deleteDocuments(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.withSession(c, func(sess *session.Session) error {
		results, err := sess.DeleteDocuments(c.Request.Context(), req.IDs)
		if err != nil && results == nil {
			return err
		}
		resp := gin.H{
			"results":   results,
			"documents": sess.Documents(),
		}
		// Deletions happened; only the refresh afterwards failed
		if err != nil {
			resp["error"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
		return nil
	})
}

type AskRequest struct {
	Query                  string `json:"query"`
	UseDefaultSystemPrompt *bool  `json:"use_default_system_prompt,omitempty"`
	Model                  string `json:"model,omitempty"`
}

func (h *Handler) ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var model string
	if req.Model != "" {
		var err error
		if model, err = gemini.ResolveModel(req.Model); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.withSession(c, func(sess *session.Session) error {
		useDefault := sess.UseDefaultSystemPrompt
		if req.UseDefaultSystemPrompt != nil {
			useDefault = *req.UseDefaultSystemPrompt
		}

		if _, err := sess.AskWithModel(c.Request.Context(), req.Query, useDefault, model); err != nil {
			return err
		}
		c.JSON(http.StatusOK, sess.LastExchange())
		return nil
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	exchanges, err := h.Service.ListExchanges(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if exchanges == nil {
		exchanges = []ExchangeRecord{}
	}
	c.JSON(http.StatusOK, exchanges)
}

func (h *Handler) getUploads(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	uploads, err := h.Service.ListUploads(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if uploads == nil {
		uploads = []UploadRecord{}
	}
	c.JSON(http.StatusOK, uploads)
}

func (h *Handler) getLogs(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	logs, err := h.Service.GetSessionLogs(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}
