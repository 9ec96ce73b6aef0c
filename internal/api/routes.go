package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tellnow/backend/internal/ai"
	"tellnow/backend/internal/classifier"
	"tellnow/backend/internal/store"
	"tellnow/backend/internal/util"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// DefaultAllowedOrigins are the dashboard dev servers.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// Config defines server dependencies.
type Config struct {
	DBPath         string
	AllowedOrigins []string
	SilentDB       bool
	Completer      ai.Completer
	Classifier     classifier.Options
	RecentIssues   int
}

// Server wires HTTP handlers with persistence and classification.
type Server struct {
	db             *store.Database
	classifier     *classifier.Classifier
	allowedOrigins []string
	notifier       *IssueNotifier
	recentIssues   int
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	if cfg.Completer == nil || !cfg.Completer.Enabled() {
		logrus.Warn("AI completer disabled - issues will be stored with default classifications")
	}

	origins := cfg.AllowedOrigins
	if origins == nil {
		origins = DefaultAllowedOrigins
	}

	return &Server{
		db:             db,
		classifier:     classifier.New(cfg.Completer, cfg.Classifier),
		allowedOrigins: origins,
		notifier:       NewIssueNotifier(),
		recentIssues:   cfg.RecentIssues,
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Notifier exposes the websocket broadcaster.
func (s *Server) Notifier() *IssueNotifier {
	return s.notifier
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Content-Type", "Authorization", "X-Requested-With"}
	corsCfg.ExposeHeaders = []string{"Content-Length"}
	corsCfg.MaxAge = 600 * time.Second
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/check", s.handleHealth)
		api.POST("/classify", s.handleClassify)
		api.POST("/classify/", s.handleClassify)
		api.GET("/stats", s.handleStats)
		api.GET("/categories", s.handleCategories)
		api.GET("/issues", s.handleListIssues)
		api.GET("/issues/stream", s.handleIssueStream)
		api.GET("/issues/:id", s.handleGetIssue)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	text := strings.TrimSpace(req.Text)
	postalCode := strings.TrimSpace(req.Cap)
	if text == "" || postalCode == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("text and cap are required"))
		return
	}

	timer := util.StartTimer()
	outcome := s.classifier.Classify(c.Request.Context(), text, postalCode)

	issue := &store.Issue{
		Text:             text,
		Cap:              postalCode,
		Source:           "web",
		Status:           string(outcome.Status),
		StatusReason:     outcome.Reason,
		RequestID:        outcome.RequestID,
		ProcessingTimeMs: timer.ElapsedMs(),
	}
	issue.SetClassification(outcome.Result)
	if err := s.db.SaveIssue(issue); err != nil {
		logrus.WithError(err).WithField("request_id", outcome.RequestID).Error("store issue")
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dto := IssueFromModel(*issue)
	s.notifier.Broadcast(IssueEvent{Type: "issue", Issue: &dto})

	entry := logrus.WithFields(logrus.Fields{
		"issue_id":   issue.ID,
		"request_id": outcome.RequestID,
		"cap":        postalCode,
		"category":   outcome.Result.Category,
		"urgency":    outcome.Result.Urgency,
		"status":     outcome.Status,
		"elapsed_ms": issue.ProcessingTimeMs,
	})
	if outcome.Status == classifier.StatusOK {
		entry.Info("issue classified")
	} else {
		entry.WithField("reason", outcome.Reason).Warn("issue classified with defaults")
	}

	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.db.Stats(s.recentIssues)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, StatsFromModel(stats))
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.classifier.Categories()})
}

func (s *Server) handleListIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, total, err := s.db.ListIssues(store.IssueQuery{
		Category: c.Query("category"),
		Urgency:  c.Query("urgency"),
		Cap:      c.Query("cap"),
		Status:   c.Query("status"),
		Offset:   page * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]IssueDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, IssueFromModel(row))
	}
	c.JSON(http.StatusOK, IssuesResponse{Items: items, Total: total})
}

func (s *Server) handleGetIssue(c *gin.Context) {
	issueID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	issue, err := s.db.GetIssue(issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("issue %d not found", issueID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, IssueFromModel(*issue))
}

func (s *Server) handleIssueStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if len(s.allowedOrigins) == 0 || origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("issue websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("issue websocket closed")
			} else {
				logrus.WithError(err).Warn("issue websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}
