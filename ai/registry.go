package ai

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrInvalidIdentifier = errors.New("invalid model identifier format, expected 'provider/modelName'")
	ErrEmptyProviderName = errors.New("provider name cannot be empty")
)

// ProviderFunc builds a model for one provider given a model name, an API
// key, and an optional base URL override.
type ProviderFunc func(modelName, apiKey string, baseURL ...string) *Model

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFunc
}

var defaultRegistry = &providerRegistry{
	providers: make(map[string]ProviderFunc),
}

// RegisterProvider makes a model factory resolvable under a provider name.
// Registering an existing name replaces the factory.
func RegisterProvider(name string, factory ProviderFunc) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrEmptyProviderName
	}
	if factory == nil {
		return errors.New("provider factory cannot be nil")
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.providers[name] = factory
	return nil
}

// Resolve builds a model from a "provider/modelName" identifier. The
// provider must have been registered, typically by importing its driver
// package.
func Resolve(identifier, apiKey string, baseURL ...string) (*Model, error) {
	provider, modelName, ok := strings.Cut(identifier, "/")
	if !ok || provider == "" || modelName == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}

	defaultRegistry.mu.RLock()
	factory, found := defaultRegistry.providers[strings.ToLower(provider)]
	defaultRegistry.mu.RUnlock()

	if !found {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, provider)
	}
	return factory(modelName, apiKey, baseURL...), nil
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	names := make([]string, 0, len(defaultRegistry.providers))
	for name := range defaultRegistry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
