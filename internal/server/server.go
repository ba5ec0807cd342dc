package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/agent"
	"github.com/raailabs/raai/internal/analytics"
	"github.com/raailabs/raai/internal/config"
	"github.com/raailabs/raai/internal/ingest"
	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/store"
)

// Server exposes the coaching pipeline over HTTP.
type Server struct {
	Orchestrator *agent.Orchestrator
	Insight      *agent.InsightAgent
	Ingest       *ingest.Agent
	Retrieval    *retrieval.Engine
	Store        *store.Store
	Config       *config.Config
	Log          *zap.SugaredLogger
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.Health)

	r.POST("/agent/message", s.AgentMessage)
	r.POST("/agent/followup", s.AgentFollowup)

	r.GET("/analytics/checkin/questions", s.CheckinQuestions)
	r.POST("/analytics/checkin", s.SubmitCheckin)
	r.GET("/analytics/summary/:user_id", s.AnalyticsSummary)

	r.GET("/baseline/questions", s.BaselineQuestions)
	r.POST("/baseline/score", s.ScoreBaseline)

	r.POST("/ingest", s.IngestSources)
	r.POST("/search", s.Search)

	r.POST("/sessions", s.CreateSession)
	r.GET("/sessions/:id/messages", s.SessionMessages)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type AgentMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Mode      string `json:"mode"`
}

func (s *Server) AgentMessage(c *gin.Context) {
	var req AgentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Mode == "" {
		req.Mode = agent.ModeQA
	}

	reply := s.Orchestrator.ProcessMessage(c.Request.Context(), req.Message, req.SessionID, req.UserID, req.Mode)
	c.JSON(http.StatusOK, reply)
}

type FollowupRequest struct {
	UserID string `json:"user_id"`
	Facet  string `json:"facet"`
	Reply  string `json:"reply"`
}

func (s *Server) AgentFollowup(c *gin.Context) {
	var req FollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	line := s.Insight.FollowUp(c.Request.Context(), req.Facet, req.Reply)
	c.JSON(http.StatusOK, gin.H{"insight_line": line})
}

// likertQuestions is the daily check-in questionnaire.
var likertQuestions = []gin.H{
	{"id": "mood", "text": "How would you rate your overall mood today?", "scale": "1=Very Low, 5=Very High"},
	{"id": "stress", "text": "How stressed did you feel today?", "scale": "1=Not at all, 5=Extremely"},
	{"id": "energy", "text": "How energetic did you feel today?", "scale": "1=Very Low, 5=Very High"},
	{"id": "connection", "text": "How connected did you feel to others today?", "scale": "1=Not at all, 5=Very Connected"},
	{"id": "motivation", "text": "How motivated did you feel today?", "scale": "1=Not at all, 5=Extremely"},
}

func (s *Server) CheckinQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": likertQuestions})
}

type CheckinRequest struct {
	UserID     string  `json:"user_id"`
	Mood       float64 `json:"mood"`
	Stress     float64 `json:"stress"`
	Energy     float64 `json:"energy"`
	Connection float64 `json:"connection"`
	Motivation float64 `json:"motivation"`
}

func (s *Server) SubmitCheckin(c *gin.Context) {
	var req CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	index := analytics.ScoreCheckin(analytics.CheckinResponses{
		Mood:       req.Mood,
		Stress:     req.Stress,
		Energy:     req.Energy,
		Connection: req.Connection,
		Motivation: req.Motivation,
	})

	// Record the sample on the user's series so trend stats accumulate.
	err := s.Store.AppendMessage(c.Request.Context(), store.Message{
		ID:        uuid.NewString(),
		SessionID: "checkin",
		UserID:    req.UserID,
		Role:      "user",
		Content:   "daily check-in",
		Metadata:  map[string]any{"mood_index": index},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.Log.Errorw("failed to record check-in", "user_id", req.UserID, "error", err)
	}

	stats := s.seriesStats(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{
		"mood_index": index,
		"ema7":       stats.EMA7,
		"ema14":      stats.EMA14,
		"zscore":     stats.ZScore,
		"flag":       stats.Flag,
	})
}

func (s *Server) AnalyticsSummary(c *gin.Context) {
	userID := c.Param("user_id")
	stats := s.seriesStats(c, userID)
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"ema7":    stats.EMA7,
		"ema14":   stats.EMA14,
		"zscore":  stats.ZScore,
		"flag":    stats.Flag,
	})
}

func (s *Server) seriesStats(c *gin.Context, userID string) analytics.SeriesStats {
	samples, err := s.Store.MoodSeries(c.Request.Context(), userID, 30, 100)
	if err != nil {
		s.Log.Errorw("mood series unavailable", "user_id", userID, "error", err)
		return analytics.SeriesStats{Flag: analytics.FlagSafe}
	}
	series := make([]float64, 0, len(samples))
	for _, m := range samples {
		series = append(series, m.Index)
	}
	return analytics.ComputeSeriesStats(series)
}

// baselineQuestions map each question to the facet it measures.
var baselineQuestions = []gin.H{
	{"qid": "SA1", "facet": "self_awareness", "text": "I can recognize my emotions as they arise."},
	{"qid": "SR1", "facet": "self_regulation", "text": "I can stay calm under pressure."},
	{"qid": "M1", "facet": "motivation", "text": "I persist even when tasks are difficult."},
	{"qid": "E1", "facet": "empathy", "text": "I understand others' feelings."},
	{"qid": "SS1", "facet": "social_skills", "text": "I handle disagreements well."},
}

var baselineQuestionFacets = map[string]string{
	"SA1": "self_awareness",
	"SR1": "self_regulation",
	"M1":  "motivation",
	"E1":  "empathy",
	"SS1": "social_skills",
}

func (s *Server) BaselineQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": baselineQuestions})
}

type BaselineRequest struct {
	UserID  string                     `json:"user_id"`
	Answers []analytics.BaselineAnswer `json:"answers"`
}

func (s *Server) ScoreBaseline(c *gin.Context) {
	var req BaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result := analytics.ScoreBaseline(req.Answers, baselineQuestionFacets)
	if req.UserID != "" {
		if err := s.Store.UpdateBaselines(c.Request.Context(), req.UserID, result.Scores); err != nil {
			s.Log.Errorw("failed to persist baselines", "user_id", req.UserID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"scores":    result.Scores,
		"strengths": result.Strengths,
		"focus":     result.Focus,
		"summary":   analytics.SummarizeBaseline(result.Scores),
	})
}

type IngestRequest struct {
	UserID  string                 `json:"user_id"`
	Sources []ingest.SourceRequest `json:"sources"`
}

func (s *Server) IngestSources(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	for i := range req.Sources {
		if req.Sources[i].UserID == "" {
			req.Sources[i].UserID = req.UserID
		}
	}

	result := s.Ingest.Ingest(c.Request.Context(), req.Sources)
	c.JSON(http.StatusOK, result)
}

type SearchRequest struct {
	Query     string `json:"query"`
	K         int    `json:"k"`
	Adaptive  *bool  `json:"adaptive"`
	UseHybrid *bool  `json:"use_hybrid"`
}

func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	adaptive := s.Config.Retrieval.Adaptive
	if req.Adaptive != nil {
		adaptive = *req.Adaptive
	}
	useHybrid := s.Config.Retrieval.UseHybrid
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}
	if req.K <= 0 {
		req.K = s.Config.Retrieval.TopK
	}

	result := s.Retrieval.Retrieve(c.Request.Context(), req.Query, req.K, adaptive, useHybrid)
	c.JSON(http.StatusOK, result)
}

type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func (s *Server) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sess := store.Session{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Name:   req.Name,
	}
	if err := s.Store.CreateSession(c.Request.Context(), sess); err != nil {
		s.Log.Errorw("failed to create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID})
}

func (s *Server) SessionMessages(c *gin.Context) {
	msgs, err := s.Store.SessionMessages(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		s.Log.Errorw("failed to load session messages", "session_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
