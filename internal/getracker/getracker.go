// Package getracker is the process-wide entry point: Init creates a shared
// client that the other functions operate on.
package getracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/vincentbai/getracker/internal/config"
	"github.com/vincentbai/getracker/internal/models"
	"github.com/vincentbai/getracker/internal/tracker"
)

var (
	mu       sync.RWMutex
	instance *tracker.Client
)

// Init replaces the shared client with a new, initialized one.
func Init(cfg config.Config, opts ...tracker.Option) (*tracker.Client, error) {
	client, err := tracker.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	client.Init()

	mu.Lock()
	instance = client
	mu.Unlock()
	return client, nil
}

// InitWithKey is Init with only an API key.
func InitWithKey(apiKey string, opts ...tracker.Option) (*tracker.Client, error) {
	return Init(config.Config{APIKey: apiKey}, opts...)
}

// Instance returns the shared client, or nil before Init.
func Instance() *tracker.Client {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func IsReady() bool {
	client := Instance()
	return client != nil && client.IsReady()
}

func require(op string) (*tracker.Client, error) {
	client := Instance()
	if client == nil {
		return nil, fmt.Errorf("%s: %w", op, tracker.ErrNotInitialized)
	}
	return client, nil
}

func AutoCapture(ctx context.Context) error {
	client, err := require("autoCapture")
	if err != nil {
		return err
	}
	return client.AutoCapture(ctx)
}

func Capture(ctx context.Context, lead models.LeadData) (models.CaptureResponse, error) {
	client, err := require("capture")
	if err != nil {
		return models.CaptureResponse{}, err
	}
	return client.Capture(ctx, lead, nil)
}

func UTMParams() (models.UTMParams, error) {
	client, err := require("getUTMParams")
	if err != nil {
		return models.UTMParams{}, err
	}
	return client.UTMParams(), nil
}

func SessionID() (string, error) {
	client, err := require("getSessionId")
	if err != nil {
		return "", err
	}
	return client.SessionID(), nil
}
