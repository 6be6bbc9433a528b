package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/councilworks/grantscout/internal/ai"
	"github.com/councilworks/grantscout/internal/auth"
	"github.com/councilworks/grantscout/internal/config"
	"github.com/councilworks/grantscout/internal/export"
	"github.com/councilworks/grantscout/internal/ingest"
	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/rank"
	"github.com/councilworks/grantscout/internal/store"
)

type Server struct {
	Echo      *echo.Echo
	Store     store.Store
	Registry  *config.Registry
	Refresher *ingest.Refresher
	Drafter   *ai.Drafter
	Auth      *auth.Service // nil without Postgres
	Settings  config.Settings

	jobMu      sync.Mutex
	runningJob *refreshJob
}

type refreshJob struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"` // running, completed, failed
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at,omitempty"`
	Runs      []models.RefreshRun `json:"runs,omitempty"`
	Error     string              `json:"error,omitempty"`
}

var (
	refreshSecretOnce    sync.Once
	refreshSecretRuntime string
)

func NewServer(st store.Store, reg *config.Registry, refresher *ingest.Refresher, drafter *ai.Drafter, authSvc *auth.Service, settings config.Settings) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: settings.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Refresh-Secret"},
	}))

	s := &Server{
		Echo:      e,
		Store:     st,
		Registry:  reg,
		Refresher: refresher,
		Drafter:   drafter,
		Auth:      authSvc,
		Settings:  settings,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/tenants", s.handleListTenants)
	api.GET("/grants", s.handleListGrants)
	api.GET("/grants/:id", s.handleGetGrant)
	api.GET("/runs", s.handleListRuns)
	api.GET("/status", s.handleStatus)
	api.GET("/export.csv", s.handleExportCSV)
	api.GET("/email-preview", s.handleEmailPreview)
	api.POST("/draft", s.handleDraft)

	admin := api.Group("")
	admin.Use(s.refreshSecretMiddleware)
	admin.POST("/refresh", s.handleRefresh)
	admin.GET("/refresh/jobs/:id", s.handleJobStatus)

	if s.Auth != nil {
		api.POST("/auth/signup", s.handleSignup)
		api.POST("/auth/login", s.handleLogin)

		saved := api.Group("/saved")
		saved.Use(s.Auth.Middleware)
		saved.POST("/:id", s.handleSaveGrant)
		saved.DELETE("/:id", s.handleUnsaveGrant)
		saved.GET("", s.handleSavedGrants)
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// tenantParam resolves the ?tenant= query parameter against the
// registry.
func (s *Server) tenantParam(c echo.Context) (*config.TenantConfig, error) {
	slug := c.QueryParam("tenant")
	if slug == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "tenant query parameter is required")
	}
	tenant := s.Registry.Tenant(slug)
	if tenant == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown tenant: "+slug)
	}
	return tenant, nil
}

func profileFor(t *config.TenantConfig) models.CouncilProfile {
	return models.CouncilProfile{
		Slug:       t.Slug,
		Name:       t.Name,
		State:      t.State,
		Population: t.Population,
		Priorities: t.Priorities,
	}
}

// tenantView returns the tenant's own records unioned with the shared
// statewide ones, deduplicated by link with the tenant's own copy
// winning.
func (s *Server) tenantView(ctx context.Context, slug string) ([]models.GrantRecord, error) {
	records, err := s.Store.List(ctx, slug)
	if err != nil {
		return nil, err
	}
	if slug == models.SharedTenant {
		return records, nil
	}
	shared, err := s.Store.List(ctx, models.SharedTenant)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.Link] = true
	}
	for _, rec := range shared {
		if !seen[rec.Link] {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Server) rankConfig(c echo.Context) rank.Config {
	cfg := rank.DefaultConfig()
	if v, err := strconv.Atoi(c.QueryParam("urgent_days")); err == nil && v > 0 {
		cfg.UrgentWithinDays = v
	}
	if v, err := strconv.Atoi(c.QueryParam("soon_days")); err == nil && v > 0 {
		cfg.SoonWithinDays = v
	}
	if v, err := strconv.ParseBool(c.QueryParam("include_summary")); err == nil {
		cfg.IncludeSummary = v
	}
	return cfg
}

func (s *Server) rankedView(c echo.Context, tenant *config.TenantConfig) ([]rank.Scored, error) {
	records, err := s.tenantView(c.Request().Context(), tenant.Slug)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	profile := profileFor(tenant)
	// keywords= adds ad hoc search terms to the council's configured
	// priorities for this request only.
	if raw := c.QueryParam("keywords"); raw != "" {
		extra := append([]string(nil), profile.Priorities...)
		for _, kw := range strings.Split(raw, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				extra = append(extra, kw)
			}
		}
		profile.Priorities = extra
	}
	return rank.Rank(records, profile, s.rankConfig(c), time.Now()), nil
}

func (s *Server) handleListTenants(c echo.Context) error {
	type tenantInfo struct {
		Slug   string `json:"slug"`
		Name   string `json:"name"`
		State  string `json:"state"`
		Shared bool   `json:"shared,omitempty"`
	}
	out := make([]tenantInfo, 0, len(s.Registry.Tenants))
	for _, t := range s.Registry.Tenants {
		out = append(out, tenantInfo{Slug: t.Slug, Name: t.Name, State: t.State, Shared: t.Shared})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListGrants(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	ranked, err := s.rankedView(c, tenant)
	if err != nil {
		return err
	}

	if q := strings.ToLower(strings.TrimSpace(c.QueryParam("q"))); q != "" {
		filtered := ranked[:0]
		for _, rec := range ranked {
			blob := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.Summary)
			if strings.Contains(blob, q) {
				filtered = append(filtered, rec)
			}
		}
		ranked = filtered
	}

	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	return c.JSON(http.StatusOK, map[string]any{
		"tenant": tenant.Slug,
		"total":  len(ranked),
		"grants": ranked,
	})
}

func (s *Server) handleGetGrant(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	records, err := s.tenantView(c.Request().Context(), tenant.Slug)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, rec := range records {
		if rec.ID == id {
			return c.JSON(http.StatusOK, rec)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "grant not found")
}

func (s *Server) handleListRuns(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.Store.ListRuns(c.Request().Context(), tenant.Slug, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleStatus(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	last, ok, err := s.Store.LastRefresh(ctx, tenant.Slug)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	records, err := s.tenantView(ctx, tenant.Slug)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := map[string]any{
		"tenant": tenant.Slug,
		"total":  len(records),
		"stale":  !ok || time.Since(last) > s.Settings.StaleWindow,
	}
	if ok {
		resp["last_refresh"] = last.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExportCSV(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	ranked, err := s.rankedView(c, tenant)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="grants-%s-%s.csv"`, tenant.Slug, time.Now().Format("2006-01-02")))
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteCSV(c.Response(), ranked)
}

func (s *Server) handleEmailPreview(c echo.Context) error {
	tenant, err := s.tenantParam(c)
	if err != nil {
		return err
	}
	ranked, err := s.rankedView(c, tenant)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, export.WeeklyEmail(profileFor(tenant), ranked, time.Now()))
}

type draftRequest struct {
	Tenant  string `json:"tenant"`
	GrantID string `json:"grant_id"`
}

func (s *Server) handleDraft(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tenant := s.Registry.Tenant(req.Tenant)
	if tenant == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown tenant: "+req.Tenant)
	}

	records, err := s.tenantView(c.Request().Context(), tenant.Slug)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, rec := range records {
		if rec.ID == req.GrantID {
			text, aiUsed := s.Drafter.Draft(c.Request().Context(), rec, profileFor(tenant))
			return c.JSON(http.StatusOK, map[string]any{
				"grant_id": rec.ID,
				"draft":    text,
				"ai_used":  aiUsed,
			})
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "grant not found")
}

// refreshSecret returns the shared secret guarding refresh endpoints,
// generating an ephemeral one when REFRESH_SECRET is unset so the
// endpoints are never accidentally open.
func (s *Server) refreshSecret() string {
	if s.Settings.RefreshSecret != "" {
		return s.Settings.RefreshSecret
	}
	refreshSecretOnce.Do(func() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Printf("generate fallback refresh secret: %v", err)
			return
		}
		refreshSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("REFRESH_SECRET is not set; refresh endpoints use an ephemeral secret")
	})
	return refreshSecretRuntime
}

func (s *Server) refreshSecretMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := s.refreshSecret()
		provided := c.Request().Header.Get("X-Refresh-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh secret")
		}
		return next(c)
	}
}

// handleRefresh starts a refresh in the background. Without force=true
// a tenant refreshed within the staleness window is skipped.
func (s *Server) handleRefresh(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	var tenants []config.TenantConfig
	if slug := c.QueryParam("tenant"); slug != "" {
		tenant := s.Registry.Tenant(slug)
		if tenant == nil {
			return echo.NewHTTPError(http.StatusNotFound, "unknown tenant: "+slug)
		}
		tenants = []config.TenantConfig{*tenant}
	} else {
		tenants = s.Registry.Tenants
	}

	if !force {
		var fresh []config.TenantConfig
		for _, t := range tenants {
			last, ok, err := s.Store.LastRefresh(c.Request().Context(), t.Slug)
			if err == nil && ok && time.Since(last) <= s.Settings.StaleWindow {
				continue
			}
			fresh = append(fresh, t)
		}
		tenants = fresh
		if len(tenants) == 0 {
			return c.JSON(http.StatusOK, map[string]string{"status": "fresh", "detail": "all tenants refreshed recently"})
		}
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		id := s.runningJob.ID
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]string{"status": "busy", "job_id": id})
	}
	job := &refreshJob{
		ID:        uuid.NewString(),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		var runs []models.RefreshRun
		var failed bool
		for _, tenant := range tenants {
			run, err := s.Refresher.RefreshTenant(ctx, tenant)
			if err != nil {
				log.Printf("[%s] refresh failed: %v", tenant.Slug, err)
				failed = true
			}
			runs = append(runs, run)
		}

		s.jobMu.Lock()
		job.Runs = runs
		job.EndedAt = time.Now().UTC()
		if failed {
			job.Status = "failed"
		} else {
			job.Status = "completed"
		}
		s.jobMu.Unlock()
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "job_id": job.ID})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.runningJob == nil || s.runningJob.ID != c.Param("id") {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, s.runningJob)
}

// Auth handlers

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and a password of at least 8 characters are required"})
	}
	if s.Registry.Tenant(req.TenantID) == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown tenant: " + req.TenantID})
	}

	resp, err := s.Auth.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	resp, err := s.Auth.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSaveGrant(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err := s.Auth.SaveGrant(c.Request().Context(), userID, c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUnsaveGrant(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err := s.Auth.UnsaveGrant(c.Request().Context(), userID, c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSavedGrants(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	records, err := s.Auth.SavedGrants(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}
