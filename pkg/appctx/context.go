// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"time"

	"media-source-go/pkg/config"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/services"
)

// Version is reported by the info endpoint.
const Version = "1.0.0"

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config    *config.Config
	Log       *logging.Logger
	Catalog   *services.Catalog
	StartedAt time.Time
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:    cfg,
		Log:       log,
		StartedAt: time.Now(),
	}
}

// WithCatalog sets the catalog.
func (c *Context) WithCatalog(cat *services.Catalog) *Context {
	c.Catalog = cat
	return c
}
