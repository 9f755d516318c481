package container

import (
	"fmt"
	"net/http"

	"github.com/Risbinrh/OMR-Service/internal/config"
	"github.com/Risbinrh/OMR-Service/internal/factory"
	"github.com/Risbinrh/OMR-Service/internal/observer"
	"github.com/Risbinrh/OMR-Service/internal/ocr"
	"github.com/Risbinrh/OMR-Service/internal/repository"
	"github.com/Risbinrh/OMR-Service/internal/service"
	"github.com/Risbinrh/OMR-Service/internal/transport"
)

// Container holds the wired application dependency graph.
type Container struct {
	config  *config.Config
	metrics *observer.MetricsObserver
	service *service.EvaluationService
	handler http.Handler
}

// NewContainer builds the full graph from configuration: storage backend,
// sheet repository, fallback pipelines, observers, service, transport.
func NewContainer(cfg *config.Config) (*Container, error) {
	fetcher, err := factory.NewSheetFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheet fetcher: %w", err)
	}
	repo := repository.New(fetcher)

	controller := factory.NewFallbackController(cfg)
	verifier := ocr.New(cfg.HeaderOCREnabled)

	events := observer.NewEventSubject()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver())
	events.Subscribe(metrics)

	svc := service.New(repo, controller, verifier, events, cfg.ProcessingTimeout, cfg.MaxWorkers)
	handler := transport.NewHandler(svc, metrics, cfg)

	return &Container{
		config:  cfg,
		metrics: metrics,
		service: svc,
		handler: handler,
	}, nil
}

// Handler returns the HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the evaluation service, used by tests and tools.
func (c *Container) Service() *service.EvaluationService {
	return c.service
}
