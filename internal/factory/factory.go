package factory

import (
	"fmt"

	"github.com/Risbinrh/OMR-Service/internal/config"
	"github.com/Risbinrh/OMR-Service/internal/fallback"
	"github.com/Risbinrh/OMR-Service/internal/pipeline"
	"github.com/Risbinrh/OMR-Service/internal/storage"
)

// NewFallbackController wires the advanced and basic pipelines into the
// strategy state machine.
func NewFallbackController(cfg *config.Config) *fallback.Controller {
	return fallback.New(
		pipeline.New(pipeline.StrategyAdvanced, cfg.MaxWorkers),
		pipeline.New(pipeline.StrategyBasic, cfg.MaxWorkers),
	)
}

// NewSheetFetcher selects the storage backend from configuration.
func NewSheetFetcher(cfg *config.Config) (storage.SheetFetcher, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendHTTP:
		return storage.NewHTTPSheetFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize), nil
	case config.StorageBackendAzure:
		return storage.NewAzureSheetFetcher(cfg.AzureAccountName, cfg.AzureAccountKey)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
