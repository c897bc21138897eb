package routes

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/notifico/notifico/internal/db"
	"github.com/notifico/notifico/internal/services"
)

// APIRoutes exposes the project and hook management JSON API plus the
// service catalog.
type APIRoutes struct {
	store     *db.Database
	registry  *services.Registry
	publicURL string
}

// NewAPIRoutes constructs the management API routes. publicURL is the
// externally reachable base used when advertising hook endpoints.
func NewAPIRoutes(store *db.Database, registry *services.Registry, publicURL string) *APIRoutes {
	return &APIRoutes{
		store:     store,
		registry:  registry,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
	}
}

// RegisterRoutes registers the management endpoints.
func (a *APIRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/api/services", a.listServices)

	s.POST("/api/projects", a.createProject)
	s.GET("/api/projects", a.listProjects)
	s.GET("/api/projects/:project_id", a.getProject)
	s.DELETE("/api/projects/:project_id", a.deleteProject)

	s.POST("/api/projects/:project_id/hooks", a.createHook)
	s.GET("/api/projects/:project_id/hooks", a.listHooks)
	s.DELETE("/api/projects/:project_id/hooks/:hook_id", a.deleteHook)
}

type serviceView struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	Capabilities []string        `json:"capabilities"`
	ConfigSchema services.Schema `json:"config_schema"`
}

func (a *APIRoutes) listServices(c echo.Context) error {
	all := a.registry.All()
	views := make([]serviceView, 0, len(all))
	for _, svc := range all {
		capabilities := make([]string, 0, 2)
		if _, ok := svc.(services.HookReceiver); ok {
			capabilities = append(capabilities, "hook-receiver")
		}
		if _, ok := svc.(services.URLShortener); ok {
			capabilities = append(capabilities, "url-shortener")
		}
		views = append(views, serviceView{
			ID:           svc.ID(),
			Name:         svc.Name(),
			Slug:         svc.Slug(),
			Description:  svc.Description(),
			Capabilities: capabilities,
			ConfigSchema: svc.ConfigSchema(),
		})
	}
	return c.JSON(http.StatusOK, views)
}

type projectView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Website      string `json:"website,omitempty"`
	Public       bool   `json:"public"`
	MessageCount int64  `json:"message_count"`
	CreatedAt    string `json:"created_at"`
}

type createProjectRequest struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	Public  *bool  `json:"public"`
}

func (a *APIRoutes) createProject(c echo.Context) error {
	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	public := true
	if req.Public != nil {
		public = *req.Public
	}

	project, err := a.store.CreateProject(c.Request().Context(), req.Name, req.Website, public)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return c.JSON(http.StatusCreated, mapProject(project))
}

func (a *APIRoutes) listProjects(c echo.Context) error {
	projects, err := a.store.ListProjects(c.Request().Context())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, mapProject(p))
	}
	return c.JSON(http.StatusOK, views)
}

func (a *APIRoutes) getProject(c echo.Context) error {
	projectID, err := paramID(c, "project_id")
	if err != nil {
		return err
	}
	project, err := a.store.GetProject(c.Request().Context(), projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	return c.JSON(http.StatusOK, mapProject(project))
}

func (a *APIRoutes) deleteProject(c echo.Context) error {
	projectID, err := paramID(c, "project_id")
	if err != nil {
		return err
	}
	if err := a.store.DeleteProject(c.Request().Context(), projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type hookView struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	Key          string `json:"key"`
	ServiceID    int64  `json:"service_id"`
	Config       any    `json:"config,omitempty"`
	MessageCount int64  `json:"message_count"`
	EndpointURL  string `json:"endpoint_url,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type createHookRequest struct {
	ServiceID int            `json:"service_id"`
	Config    map[string]any `json:"config"`
}

func (a *APIRoutes) createHook(c echo.Context) error {
	projectID, err := paramID(c, "project_id")
	if err != nil {
		return err
	}
	if _, err := a.store.GetProject(c.Request().Context(), projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "project not found")
		}
		return fmt.Errorf("get project: %w", err)
	}

	var req createHookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	svc, ok := a.registry.Lookup(req.ServiceID)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown service id")
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}
	config, err := svc.PackConfig(req.Config)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	hook, err := a.store.CreateHook(c.Request().Context(), projectID, svc.ID(), config)
	if err != nil {
		return fmt.Errorf("create hook: %w", err)
	}
	return c.JSON(http.StatusCreated, a.mapHook(hook, svc))
}

func (a *APIRoutes) listHooks(c echo.Context) error {
	projectID, err := paramID(c, "project_id")
	if err != nil {
		return err
	}
	hooks, err := a.store.ListHooksByProject(c.Request().Context(), projectID)
	if err != nil {
		return fmt.Errorf("list hooks: %w", err)
	}
	views := make([]hookView, 0, len(hooks))
	for _, hook := range hooks {
		svc, _ := a.registry.Lookup(int(hook.ServiceID))
		views = append(views, a.mapHook(hook, svc))
	}
	return c.JSON(http.StatusOK, views)
}

func (a *APIRoutes) deleteHook(c echo.Context) error {
	projectID, err := paramID(c, "project_id")
	if err != nil {
		return err
	}
	hookID, err := paramID(c, "hook_id")
	if err != nil {
		return err
	}
	if err := a.store.DeleteHook(c.Request().Context(), hookID, projectID); err != nil {
		return fmt.Errorf("delete hook: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *APIRoutes) mapHook(hook db.Hook, svc services.Service) hookView {
	view := hookView{
		ID:           hook.ID,
		ProjectID:    hook.ProjectID,
		Key:          hook.Key,
		ServiceID:    hook.ServiceID,
		MessageCount: hook.MessageCount,
		CreatedAt:    hook.CreatedAt,
		EndpointURL:  fmt.Sprintf("%s/h/%d/%s", a.publicURL, hook.ProjectID, hook.Key),
	}
	if svc == nil {
		return view
	}
	info := services.HookInfo{
		ID:        hook.ID,
		ProjectID: hook.ProjectID,
		Key:       hook.Key,
		ServiceID: int(hook.ServiceID),
		Config:    hook.Config,
	}
	if advertiser, ok := svc.(services.EndpointAdvertiser); ok {
		view.EndpointURL = advertiser.EndpointURL(a.publicURL, info)
	}
	if values, err := svc.UnpackConfig(hook.Config); err == nil {
		view.Config = values
	}
	return view
}

func mapProject(p db.Project) projectView {
	return projectView{
		ID:           p.ID,
		Name:         p.Name,
		Website:      p.Website.String,
		Public:       p.Public != 0,
		MessageCount: p.MessageCount,
		CreatedAt:    p.CreatedAt,
	}
}

func paramID(c echo.Context, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || value <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return value, nil
}
