package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// WidgetConfig is what the widget needs to render itself.
type WidgetConfig struct {
	CompletionEnabled bool   `json:"completion_enabled"`
	Provider          string `json:"provider"`
	WeakIntentTier    bool   `json:"weak_intent_tier"`
	SessionTTLSeconds int    `json:"session_ttl_seconds"`
	OfflineNotice     string `json:"offline_notice"`
}

// InfoHandler serves static widget data.
type InfoHandler struct {
	catalog *catalog.Catalog
	config  WidgetConfig
}

// NewInfoHandler creates an info handler.
func NewInfoHandler(c *catalog.Catalog, cfg WidgetConfig) *InfoHandler {
	if cfg.OfflineNotice == "" {
		cfg.OfflineNotice = c.OfflineNotice
	}
	return &InfoHandler{catalog: c, config: cfg}
}

// RegisterRoutes registers the catalog and config routes.
func (h *InfoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
	r.Get("/api/catalog", h.GetCatalog)
}

// GetConfig returns the widget configuration.
func (h *InfoHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.config)
}

// GetCatalog returns the catalog plus the form's select options.
func (h *InfoHandler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"catalog":           h.catalog,
		"courses":           domain.Courses,
		"experience_levels": domain.ExperienceLevels,
	})
}
