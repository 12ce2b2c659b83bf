package functions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/andrey-berenda/locadora/internal/pkg/sweep"
	"github.com/andrey-berenda/locadora/internal/pkg/webhook"
)

type WebhookHandler interface {
	Handle(ctx context.Context, req webhook.Request) webhook.Response
}

// Webhook adapts the reconciler to a Lambda function URL.
type Webhook struct {
	Handler WebhookHandler
}

func (w Webhook) Invoke(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			b, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("base64.DecodeString: %v", err)})
			return events.LambdaFunctionURLResponse{
				StatusCode: http.StatusInternalServerError,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       string(b),
			}, nil
		}
		body = decoded
	}

	resp := w.Handler.Handle(ctx, webhook.Request{
		Method:  req.RequestContext.HTTP.Method,
		Headers: req.Headers,
		Body:    body,
	})
	return events.LambdaFunctionURLResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}, nil
}

type SweepRunner interface {
	Run(ctx context.Context) (sweep.Result, error)
}

// Sweep is invoked by the scheduler with an arbitrary payload.
type Sweep struct {
	Sweeper SweepRunner
}

func (s Sweep) Invoke(ctx context.Context, _ []byte) ([]byte, error) {
	result, err := s.Sweeper.Run(ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	return b, nil
}
