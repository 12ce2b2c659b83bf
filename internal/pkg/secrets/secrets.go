package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type api interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Client reads Secrets Manager values and caches them for the lifetime of the
// process, which for a Lambda is one container.
type Client struct {
	api   api
	mu    sync.RWMutex
	cache map[string]string
}

func New(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("config.LoadDefaultConfig: %w", err)
	}
	return NewFromAPI(secretsmanager.NewFromConfig(cfg)), nil
}

func NewFromAPI(a api) *Client {
	return &Client{api: a, cache: make(map[string]string)}
}

func (c *Client) GetSecret(ctx context.Context, id string) (string, error) {
	c.mu.RLock()
	v, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("api.GetSecretValue: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	c.mu.Lock()
	c.cache[id] = *out.SecretString
	c.mu.Unlock()
	return *out.SecretString, nil
}
