// Package storage provides the key-value scopes attribution state lives in:
// a durable scope that survives restarts and a session scope that does not.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is a string key-value scope. Get returns ErrNotFound for missing keys.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// GetJSON decodes the value stored under key into dest.
func GetJSON(s Store, key string, dest any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func SetJSON(s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(key, string(data))
}

// Memory is an in-process Store. It backs the session scope: its contents
// live exactly as long as the value does.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Disabled is a Store whose every call fails, like browser storage with
// cookies blocked or a private window quota of zero.
type Disabled struct{}

func (Disabled) Get(string) (string, error) { return "", ErrUnavailable }
func (Disabled) Set(string, string) error   { return ErrUnavailable }
func (Disabled) Delete(string) error        { return ErrUnavailable }
