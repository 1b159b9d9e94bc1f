package awso

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"sync"
)

// ClientProvider builds an AWS service client on first use and hands the same
// client out afterwards. A failed build is not cached.
type ClientProvider[T any] struct {
	region      string
	buildClient func(cfg aws.Config) *T
	loadConfig  func(ctx context.Context, region string) (aws.Config, error)

	mu     sync.Mutex
	client *T
}

func NewClientProvider[T any](region string, buildClient func(cfg aws.Config) *T) *ClientProvider[T] {
	return &ClientProvider[T]{
		region:      region,
		buildClient: buildClient,
		loadConfig:  loadDefaultConfig,
	}
}

func (cp *ClientProvider[T]) Client(ctx context.Context) (*T, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.client == nil {
		cfg, err := cp.loadConfig(ctx, cp.region)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		cp.client = cp.buildClient(cfg)
	}
	return cp.client, nil
}

func loadDefaultConfig(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		return config.LoadDefaultConfig(ctx)
	}
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}
