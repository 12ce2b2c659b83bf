package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andrey-berenda/locadora/internal/pkg/webhook"
)

type WebhookHandler interface {
	Handle(ctx context.Context, req webhook.Request) webhook.Response
}

type Sweeper interface {
	Respond(ctx context.Context) (int, []byte)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

const maxWebhookBody = 1 << 20

func NewRouter(webhooks WebhookHandler, sweeper Sweeper, db Pinger, logger *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	// Every verb reaches the reconciler; it only treats OPTIONS specially.
	router.Any("/webhooks/asaas", webhookRoute(webhooks))
	router.POST("/jobs/overdue-sweep", func(c *gin.Context) {
		status, body := sweeper.Respond(c.Request.Context())
		c.Data(status, "application/json", body)
	})
	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func webhookRoute(webhooks WebhookHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k := range c.Request.Header {
			headers[k] = c.Request.Header.Get(k)
		}

		resp := webhooks.Handle(c.Request.Context(), webhook.Request{
			Method:  c.Request.Method,
			Headers: headers,
			Body:    body,
		})
		for k, v := range resp.Headers {
			c.Header(k, v)
		}
		if len(resp.Body) == 0 {
			c.Status(resp.StatusCode)
			return
		}
		c.Data(resp.StatusCode, resp.Headers["Content-Type"], resp.Body)
	}
}
