// Package tracker is the capture client: it instruments forms, assembles
// attribution for each lead and posts the result to the tracker endpoint.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vincentbai/getracker/internal/attribution"
	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/config"
	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/models"
	"github.com/vincentbai/getracker/internal/session"
	"github.com/vincentbai/getracker/internal/storage"
)

var (
	ErrNotInitialized = errors.New("must call Init() first")
	ErrEmailRequired  = errors.New("email is required for lead tracking")
	ErrNoDocument     = errors.New("no document configured")
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Client struct {
	config      config.Config
	httpClient  *http.Client
	env         browser.Environment
	attribution *attribution.Store
	session     *session.Context
	document    *dom.Document
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time

	mu                    sync.Mutex
	initialized           bool
	formListenersAttached bool

	attachMu  sync.Mutex
	formCount int

	inflight sync.WaitGroup
}

// New builds a client. It fails only when the configuration has no API key.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.env == nil {
		o.env = browser.NewWindow("", "", "")
	}
	if o.durable == nil {
		o.durable = storage.NewMemory()
	}
	if o.session == nil {
		o.session = storage.NewMemory()
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	if o.now == nil {
		o.now = time.Now
	}

	logger := slog.New(slog.DiscardHandler)
	if cfg.Debug {
		logger = o.logger
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}
	logger = logger.With(slog.String("component", "getracker"))

	c := &Client{
		config:      cfg,
		httpClient:  o.httpClient,
		env:         o.env,
		attribution: attribution.NewStore(o.env, o.durable, logger),
		session:     session.NewContext(o.env, o.session, logger),
		document:    o.document,
		logger:      logger,
		metrics:     NewMetrics(o.registerer),
		now:         o.now,
	}
	logger.Debug("GETracker created",
		slog.String("api_host", cfg.APIHost),
		slog.String("company_id", cfg.CompanyID))
	return c, nil
}

func (c *Client) Config() config.Config {
	return c.config
}

// Init records the session landing page and marks the client ready. Calling
// it again is a no-op.
func (c *Client) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		c.logger.Debug("Already initialized")
		return
	}
	c.session.StoreLandingPage()
	c.initialized = true
	c.logger.Debug("GETracker SDK initialized successfully")
}

func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Capture posts lead with freshly assembled attribution. Misuse (no Init,
// no email) is returned as an error; every delivery failure is reported in
// the response instead.
func (c *Client) Capture(ctx context.Context, lead models.LeadData, rawFormFields map[string]any) (models.CaptureResponse, error) {
	if !c.IsReady() {
		return models.CaptureResponse{}, fmt.Errorf("capture: %w", ErrNotInitialized)
	}
	if lead.Email == "" {
		return models.CaptureResponse{}, ErrEmailRequired
	}
	if rawFormFields == nil {
		rawFormFields = map[string]any{}
	}

	utm := c.attribution.UTMParams()
	attributionData := c.buildAttributionData(utm)
	payload := models.CapturePayload{
		LeadData:    lead,
		Attribution: &attributionData,
		RawData: &models.RawData{
			FormFields:  rawFormFields,
			UTM:         utm,
			Attribution: attributionData,
			Timestamp:   c.now().UTC().Format(timestampLayout),
			URL:         c.currentURL(),
		},
	}

	c.logger.Debug("Tracking lead",
		slog.String("email", lead.Email),
		slog.String("session_id", attributionData.SessionID),
		slog.String("utm_source", utm.Source),
		slog.String("click_id", attributionData.ClickID))

	start := time.Now()
	response, result := c.send(ctx, payload)
	c.metrics.captureDuration.Observe(time.Since(start).Seconds())
	c.metrics.captures.WithLabelValues(result).Inc()
	return response, nil
}

func (c *Client) send(ctx context.Context, payload models.CapturePayload) (models.CaptureResponse, string) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Debug("Failed to encode payload", slog.String("error", err.Error()))
		return models.CaptureResponse{Success: false, Error: err.Error()}, resultFailed
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint(), bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("Failed to build request", slog.String("error", err.Error()))
		return models.CaptureResponse{Success: false, Error: err.Error()}, resultFailed
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Debug("Network error during tracking", slog.String("error", err.Error()))
		return models.CaptureResponse{Success: false, Error: err.Error()}, resultFailed
	}
	defer response.Body.Close()

	var result any
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		c.logger.Debug("Malformed tracker response",
			slog.Int("status", response.StatusCode),
			slog.String("error", err.Error()))
		return models.CaptureResponse{Success: false, Error: err.Error()}, resultFailed
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		c.logger.Debug("Tracking failed", slog.Int("status", response.StatusCode), slog.Any("response", result))
		return models.CaptureResponse{
			Success: false,
			Error:   errorMessage(result),
			Message: field(result, "message"),
		}, resultRejected
	}

	c.logger.Debug("Tracking successful", slog.Any("response", result))
	return models.CaptureResponse{Success: true, Data: result, Message: field(result, "message")}, resultSuccess
}

// errorMessage picks the server's error, then message, then a generic text.
func errorMessage(result any) string {
	for _, key := range []string{"error", "message"} {
		if s := field(result, key); s != "" {
			return s
		}
	}
	return "Tracking failed"
}

// field renders a truthy top-level value of a JSON object body as text.
// Strings are returned as is; other values are re-encoded as JSON.
func field(result any, key string) string {
	body, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	switch v := body[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
	case float64:
		if v == 0 {
			return ""
		}
	}
	encoded, err := json.Marshal(body[key])
	if err != nil {
		return fmt.Sprint(body[key])
	}
	return string(encoded)
}

func (c *Client) buildAttributionData(utm models.UTMParams) models.AttributionData {
	click, _ := c.attribution.ClickID()
	return models.AttributionData{
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
		UTMTerm:     utm.Term,
		UTMContent:  utm.Content,
		ClickID:     click.ClickID,
		AdPlatform:  click.Platform,
		Referrer:    c.session.Referrer(),
		LandingPage: c.session.LandingPage(),
		UserAgent:   c.session.UserAgent(),
		SessionID:   c.session.SessionID(),
	}
}

// Attribution returns the attribution a capture made now would carry.
func (c *Client) Attribution() models.AttributionData {
	return c.buildAttributionData(c.attribution.UTMParams())
}

func (c *Client) UTMParams() models.UTMParams {
	return c.attribution.UTMParams()
}

func (c *Client) ClickID() (models.ClickIDInfo, bool) {
	return c.attribution.ClickID()
}

func (c *Client) SessionID() string {
	return c.session.SessionID()
}

// ResetAttribution forgets the persisted UTM and click-id snapshots.
func (c *Client) ResetAttribution() error {
	return c.attribution.Reset()
}

// Wait blocks until captures started by form submissions have finished.
func (c *Client) Wait() {
	c.inflight.Wait()
}

func (c *Client) currentURL() string {
	href, err := c.env.Href()
	if err != nil {
		return ""
	}
	return href
}
