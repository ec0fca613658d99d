package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/govmatch/internal/config"
	"github.com/david/govmatch/internal/db"
	"github.com/david/govmatch/internal/ingest"
	"github.com/david/govmatch/internal/logger"
	"github.com/david/govmatch/internal/models"
	"github.com/david/govmatch/internal/search"
)

type Server struct {
	Echo     *echo.Echo
	Store    db.Catalog
	Importer *ingest.Importer
	Search   *search.Service

	log            *logger.Logger
	adminSecret    string
	maxImportBytes int64
}

func NewServer(cfg config.ServerConfig, store db.Catalog, importer *ingest.Importer, searchSvc *search.Service, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	secret, err := resolveAdminSecret(cfg.AdminSecret, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Echo:           e,
		Store:          store,
		Importer:       importer,
		Search:         searchSvc,
		log:            log,
		adminSecret:    secret,
		maxImportBytes: cfg.MaxImportBytes,
	}
	if s.maxImportBytes <= 0 {
		s.maxImportBytes = 32 << 20
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.POST("/search", s.handleSearch)
	api.GET("/sources", s.handleGetSources)
	api.GET("/opportunities/:id", s.handleGetOpportunity)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/import/:source", s.handleImport)
	admin.POST("/import/:source/fetch", s.handleImportFetch)
	admin.GET("/import/runs", s.handleListRuns)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		return c.String(http.StatusServiceUnavailable, "catalog unavailable")
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSearch(c echo.Context) error {
	var req search.Request
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}

	resp, err := s.Search.Search(c.Request().Context(), req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, search.ErrInvalidRequest):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrCapabilityUnavailable):
		s.log.Error("Web search failed", "error", err)
		return errorJSON(c, http.StatusBadGateway, "Web search is temporarily unavailable")
	default:
		s.log.Error("Search failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Search is temporarily unavailable")
	}
}

type importBody struct {
	Payload string `json:"payload"`
}

// handleImport accepts the export either as the raw request body or as a JSON
// object {"payload": "..."}.
func (s *Server) handleImport(c echo.Context) error {
	source := strings.TrimSpace(c.Param("source"))
	body := http.MaxBytesReader(c.Response(), c.Request().Body, s.maxImportBytes)

	var payload io.Reader = body
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req importBody
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "Invalid JSON body")
		}
		payload = strings.NewReader(req.Payload)
	}

	res, err := s.Importer.Import(c.Request().Context(), source, payload)
	if err != nil {
		return s.importError(c, source, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleImportFetch(c echo.Context) error {
	source := strings.TrimSpace(c.Param("source"))
	res, err := s.Importer.ImportFromFeed(c.Request().Context(), source)
	if err != nil {
		return s.importError(c, source, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) importError(c echo.Context, source string, err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Payload exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, ingest.ErrInvalidImport), errors.Is(err, ingest.ErrNoUsableRows):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrUnknownSource):
		return errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrFetchFailed):
		s.log.Error("Feed fetch failed", "source", source, "error", err)
		return errorJSON(c, http.StatusBadGateway, "Could not download the source feed")
	default:
		s.log.Error("Import failed", "source", source, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Import failed")
	}
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	runs, err := s.Store.ListRuns(c.Request().Context(), c.QueryParam("source"), limit)
	if err != nil {
		s.log.Error("List runs failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Could not list import runs")
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// sourceInfo joins a registry entry with what the catalog holds for it.
type sourceInfo struct {
	ID              string            `json:"id"`
	Name            string            `json:"name,omitempty"`
	Format          string            `json:"format"`
	Kind            models.SourceKind `json:"kind"`
	Registered      bool              `json:"registered"`
	FeedConfigured  bool              `json:"feed_configured"`
	ScheduleEnabled bool              `json:"schedule_enabled"`
	models.SourceSummary
}

func (s *Server) handleGetSources(c echo.Context) error {
	summaries, err := s.Store.ListSources(c.Request().Context())
	if err != nil {
		s.log.Error("List sources failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Could not list sources")
	}
	bySource := make(map[string]models.SourceSummary, len(summaries))
	for _, sum := range summaries {
		bySource[sum.Source] = sum
	}

	registry := s.Importer.Registry()
	out := make([]sourceInfo, 0, len(registry.Sources)+len(summaries))
	for _, src := range registry.Sources {
		sum, ok := bySource[src.ID]
		if !ok {
			sum = models.SourceSummary{Source: src.ID, Kind: src.SourceKind()}
		}
		delete(bySource, src.ID)
		out = append(out, sourceInfo{
			ID:              src.ID,
			Name:            src.Name,
			Format:          string(src.SourceFormat()),
			Kind:            src.SourceKind(),
			Registered:      true,
			FeedConfigured:  src.FeedURL != "",
			ScheduleEnabled: src.ScheduleEnabled,
			SourceSummary:   sum,
		})
	}
	// Sources imported under ids the registry does not know.
	for _, sum := range summaries {
		if _, left := bySource[sum.Source]; !left {
			continue
		}
		out = append(out, sourceInfo{
			ID:            sum.Source,
			Format:        string(ingest.FormatGeneric),
			Kind:          sum.Kind,
			SourceSummary: sum,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid id")
	}
	opp, err := s.Store.GetOpportunity(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		s.log.Error("Get opportunity failed", "id", id, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Could not load opportunity")
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader != "" && adminHeader == s.adminSecret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == s.adminSecret {
				return next(c)
			}
		}
		return errorJSON(c, http.StatusUnauthorized, "Unauthorized admin access")
	}
}

// resolveAdminSecret falls back to a random per-process secret so admin routes are
// never open.
func resolveAdminSecret(configured string, log *logger.Logger) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
