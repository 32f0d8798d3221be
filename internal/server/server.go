// Package server exposes the analytical agent and dashboard metrics over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/agent"
	"github.com/KaramelBytes/filflo-cli/internal/ai"
	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/history"
	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
)

// Answerer is the part of the agent the API needs.
type Answerer interface {
	Answer(ctx context.Context, question string, turns []history.Turn) (string, error)
}

// Defaults.
const (
	DefaultRatePerMin   = 20
	DefaultContextTurns = 10
	DefaultHistoryLimit = 20
)

type Config struct {
	RatePerMin int
	// ContextTurns is how many stored turns are sent with each question.
	ContextTurns int

	Logger    *zap.Logger
	Telemetry *telemetry.Registry
	Now       func() time.Time
}

type Server struct {
	agent   Answerer
	data    *table.Table
	store   history.Store
	cfg     Config
	log     *zap.Logger
	limiter *ipLimiter
}

// Suggestions are offered to clients that have not asked anything yet.
var Suggestions = []string{
	"What is our overall fill rate?",
	"Which are the top 5 understocked SKUs by demand velocity?",
	"Which customers have the most pending orders?",
	"List SKUs with a stockout and their shortage quantity.",
	"Which products are overstocked and how old is their inventory?",
	"What is the total taxable value by order type?",
	"Show the 10 highest priority SKUs.",
}

func New(a Answerer, data *table.Table, store history.Store, cfg Config) *Server {
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = DefaultRatePerMin
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = DefaultContextTurns
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		agent:   a,
		data:    data,
		store:   store,
		cfg:     cfg,
		log:     logging.OrNop(cfg.Logger),
		limiter: newIPLimiter(cfg.RatePerMin),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.metricsMiddleware())
	router.Use(s.logMiddleware())

	router.GET("/health", s.health)
	if s.cfg.Telemetry != nil {
		router.GET("/metrics", gin.WrapH(s.cfg.Telemetry.Handler()))
	}

	brain := router.Group("/api/brain")
	{
		brain.POST("/query", s.rateLimit(), s.query)
		brain.GET("/metrics", s.metrics)
		brain.GET("/suggestions", s.suggestions)
		brain.GET("/describe", s.describe)
		brain.GET("/history/:userId", s.queryHistory)
		brain.GET("/conversation/:userId", s.conversation)
		brain.DELETE("/conversation/:userId", s.clearConversation)
	}
	return router
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"time":    s.cfg.Now().Unix(),
		"records": s.data.Len(),
	})
}

type queryRequest struct {
	Query  string `json:"query" binding:"required,min=5,max=500"`
	UserID string `json:"userId" binding:"required,min=1,max=100"`
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Query must be between 5 and 500 characters and User ID is required")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	req.UserID = strings.TrimSpace(req.UserID)
	if len([]rune(req.Query)) < 5 || req.UserID == "" {
		fail(c, http.StatusBadRequest, "Query must be between 5 and 500 characters and User ID is required")
		return
	}

	ctx := c.Request.Context()
	turns, err := s.store.Recent(ctx, req.UserID, s.cfg.ContextTurns)
	if err != nil {
		// answer without context rather than refuse
		s.log.Warn("history read failed", zap.String("user", req.UserID), zap.Error(err))
		turns = nil
	}

	asked := s.cfg.Now()
	answer, err := s.agent.Answer(ctx, req.Query, turns)
	if err != nil {
		answer = agent.ErrorPrefix + err.Error()
	} else {
		err := s.store.Append(ctx, req.UserID,
			history.Turn{Role: ai.RoleUser, Content: req.Query, Timestamp: asked},
			history.Turn{Role: ai.RoleAssistant, Content: answer, Timestamp: s.cfg.Now()},
		)
		if err != nil {
			s.log.Warn("history write failed", zap.String("user", req.UserID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"answer":    answer,
			"query":     req.Query,
			"timestamp": asked.UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": derive.Dashboard(s.data)})
}

func (s *Server) suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"suggestions": Suggestions}})
}

type columnInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) describe(c *gin.Context) {
	cols := make([]columnInfo, 0, len(s.data.Header))
	for _, h := range s.data.Header {
		cols = append(cols, columnInfo{Name: h, Description: agent.Glossary[h]})
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"table": s.data.Name, "records": s.data.Len(), "columns": cols},
	})
}

func userID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("userId"))
	if id == "" || len([]rune(id)) > 100 {
		fail(c, http.StatusBadRequest, "Valid user ID is required")
		return "", false
	}
	return id, true
}

type queryEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// queryHistory lists the user's questions, newest last.
func (s *Server) queryHistory(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			fail(c, http.StatusBadRequest, "Limit must be between 1 and 100")
			return
		}
		limit = n
	}
	turns, err := s.store.Recent(c.Request.Context(), id, 0)
	if err != nil {
		s.log.Error("history read failed", zap.String("user", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to read history")
		return
	}
	queries := make([]queryEntry, 0, len(turns))
	for _, t := range turns {
		if t.Role == ai.RoleUser {
			queries = append(queries, queryEntry{Query: t.Content, Timestamp: t.Timestamp})
		}
	}
	if len(queries) > limit {
		queries = queries[len(queries)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"userId": id, "history": queries, "count": len(queries)},
	})
}

func (s *Server) conversation(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	turns, err := s.store.Recent(c.Request.Context(), id, 0)
	if err != nil {
		s.log.Error("history read failed", zap.String("user", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to read conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"userId": id, "conversation": turns, "turns": len(turns)},
	})
}

func (s *Server) clearConversation(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if err := s.store.Clear(c.Request.Context(), id); err != nil {
		s.log.Error("history clear failed", zap.String("user", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to clear conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation history cleared"})
}
