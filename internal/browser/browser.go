// Package browser models the host-provided navigation values the tracker
// reads: the current URL, the document referrer and the user agent.
package browser

import (
	"errors"
	"sync"
)

var ErrNoLocation = errors.New("no current location")

// Environment exposes the host page's navigation state. Any method may fail;
// callers degrade failures to empty values.
type Environment interface {
	Href() (string, error)
	Referrer() (string, error)
	UserAgent() (string, error)
}

// Window is an in-process Environment whose values are set by the embedder.
type Window struct {
	mu        sync.RWMutex
	href      string
	referrer  string
	userAgent string
}

func NewWindow(href, referrer, userAgent string) *Window {
	return &Window{href: href, referrer: referrer, userAgent: userAgent}
}

// Navigate moves the window to href. The previous location becomes the
// referrer, as a same-tab link click would.
func (w *Window) Navigate(href string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.href != "" {
		w.referrer = w.href
	}
	w.href = href
}

func (w *Window) Href() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.href == "" {
		return "", ErrNoLocation
	}
	return w.href, nil
}

func (w *Window) Referrer() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.referrer, nil
}

func (w *Window) UserAgent() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.userAgent, nil
}
