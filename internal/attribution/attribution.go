// Package attribution captures UTM parameters and ad click identifiers from
// the current URL and keeps the last non-empty observation in durable
// storage, so later page views without them still report where the visitor
// came from.
package attribution

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/models"
	"github.com/vincentbai/getracker/internal/storage"
)

// Durable storage keys.
const (
	UTMParamsKey = "ge_utm_params"
	ClickIDKey   = "ge_click_id"
)

type clickIDParam struct {
	name     string
	platform string
}

// Checked in order; the first parameter present wins.
var clickIDParams = []clickIDParam{
	{"fbclid", "facebook"},
	{"gclid", "google"},
	{"msclkid", "microsoft"},
	{"ttclid", "tiktok"},
	{"li_fat_id", "linkedin"},
	{"twclid", "twitter"},
	{"ScCid", "snapchat"},
	{"gbraid", "google"},
	{"wbraid", "google"},
}

// Platform returns the ad platform for a click id query parameter name.
func Platform(param string) (string, bool) {
	for _, p := range clickIDParams {
		if p.name == param {
			return p.platform, true
		}
	}
	return "", false
}

type Store struct {
	env     browser.Environment
	durable storage.Store
	logger  *slog.Logger
}

func NewStore(env browser.Environment, durable storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{env: env, durable: durable, logger: logger}
}

func (s *Store) query() (url.Values, error) {
	href, err := s.env.Href()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	return u.Query(), nil
}

// ExtractUTMParams reads the recognized UTM keys with non-empty values from
// the current URL. It never fails; an unreadable URL yields no parameters.
func (s *Store) ExtractUTMParams() models.UTMParams {
	var params models.UTMParams
	query, err := s.query()
	if err != nil {
		s.logger.Debug("Error extracting UTM params", slog.String("error", err.Error()))
		return params
	}
	for _, key := range models.UTMKeys {
		if value := query.Get(key); value != "" {
			params.Set(key, value)
		}
	}
	return params
}

// UTMParams returns the UTM parameters on the current URL, persisting them
// over any earlier snapshot. Without any it returns the last persisted set.
func (s *Store) UTMParams() models.UTMParams {
	current := s.ExtractUTMParams()
	if !current.IsEmpty() {
		if err := storage.SetJSON(s.durable, UTMParamsKey, current); err != nil {
			s.logger.Debug("Error storing UTM params", slog.String("error", err.Error()))
		}
		return current
	}

	var stored models.UTMParams
	if err := storage.GetJSON(s.durable, UTMParamsKey, &stored); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("Error retrieving stored UTM params", slog.String("error", err.Error()))
		}
		return models.UTMParams{}
	}
	return stored
}

// ExtractClickID returns the highest-priority click id on the current URL.
func (s *Store) ExtractClickID() (models.ClickIDInfo, bool) {
	query, err := s.query()
	if err != nil {
		s.logger.Debug("Error extracting click ID", slog.String("error", err.Error()))
		return models.ClickIDInfo{}, false
	}
	for _, p := range clickIDParams {
		if value := query.Get(p.name); value != "" {
			return models.ClickIDInfo{ClickID: value, Platform: p.platform}, true
		}
	}
	return models.ClickIDInfo{}, false
}

// ClickID applies the same overwrite-if-fresh policy as UTMParams.
func (s *Store) ClickID() (models.ClickIDInfo, bool) {
	if current, ok := s.ExtractClickID(); ok {
		if err := storage.SetJSON(s.durable, ClickIDKey, current); err != nil {
			s.logger.Debug("Error storing click ID", slog.String("error", err.Error()))
		}
		return current, true
	}

	var stored models.ClickIDInfo
	if err := storage.GetJSON(s.durable, ClickIDKey, &stored); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("Error retrieving stored click ID", slog.String("error", err.Error()))
		}
		return models.ClickIDInfo{}, false
	}
	if stored.ClickID == "" {
		return models.ClickIDInfo{}, false
	}
	return stored, true
}

// Reset forgets the persisted snapshots.
func (s *Store) Reset() error {
	return errors.Join(s.durable.Delete(UTMParamsKey), s.durable.Delete(ClickIDKey))
}
