package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Risbinrh/OMR-Service/internal/config"
	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/internal/observer"
	"github.com/Risbinrh/OMR-Service/internal/service"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// NewHandler builds the HTTP surface: health and metrics probes plus the
// single and batch evaluation endpoints.
func NewHandler(svc *service.EvaluationService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", metricsSnapshot(metrics))
	r.POST("/evaluate", evaluateSheet(svc, cfg))
	r.POST("/evaluate/batch", evaluateBatch(svc, cfg))

	return r
}

func evaluateSheet(svc *service.EvaluationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
		}).Info("evaluation request received")

		var req models.EvaluationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, requestID, apperrors.NewValidationError("invalid request payload", err))
			return
		}

		result, err := svc.Evaluate(ctx, requestID, req)
		resp := svc.BuildResponse(ctx, requestID, start, result, err)
		if err != nil {
			c.JSON(apperrors.GetStatusCode(err), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func evaluateBatch(svc *service.EvaluationService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.BatchEvaluationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, requestID, apperrors.NewValidationError("invalid batch payload", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"sheets":     len(req.Sheets),
			"ip":         c.ClientIP(),
		}).Info("batch evaluation request received")

		resp := svc.EvaluateBatch(ctx, req)
		c.JSON(http.StatusOK, resp)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func metricsSnapshot(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, requestID string, err *apperrors.AppError) {
	logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  requestID,
		"status_code": err.StatusCode,
		"path":        c.Request.URL.Path,
		"ip":          c.ClientIP(),
	}).Error("request rejected")

	c.AbortWithStatusJSON(err.StatusCode, models.EvaluationResponse{
		RequestID: requestID,
		Status:    "error",
		Error: &models.ErrorBody{
			Code:             string(err.Code),
			Message:          err.Message,
			SuggestedActions: err.SuggestedActions,
		},
	})
}
