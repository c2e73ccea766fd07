package ai

import (
	"errors"
	"testing"
)

func TestResolveUsesRegisteredProvider(t *testing.T) {
	err := RegisterProvider("TestProv", func(modelName, apiKey string, baseURL ...string) *Model {
		m := &Model{ModelName: modelName, APIKey: apiKey}
		if len(baseURL) > 0 {
			m.BaseURL = baseURL[0]
		}
		return m
	})
	if err != nil {
		t.Fatalf("RegisterProvider failed: %v", err)
	}

	model, err := Resolve("testprov/fast-1", "key-123", "https://proxy.local/v1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if model.ModelName != "fast-1" {
		t.Errorf("expected model name fast-1, got %q", model.ModelName)
	}
	if model.APIKey != "key-123" {
		t.Errorf("expected api key to pass through, got %q", model.APIKey)
	}
	if model.BaseURL != "https://proxy.local/v1" {
		t.Errorf("expected base url to pass through, got %q", model.BaseURL)
	}
}

func TestResolveRejectsBareModelName(t *testing.T) {
	_, err := Resolve("gpt-4o-mini", "")
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	_, err := Resolve("nosuch/model-1", "")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestRegisterProviderRejectsEmptyName(t *testing.T) {
	err := RegisterProvider("  ", func(modelName, apiKey string, baseURL ...string) *Model {
		return &Model{}
	})
	if !errors.Is(err, ErrEmptyProviderName) {
		t.Fatalf("expected ErrEmptyProviderName, got %v", err)
	}
}

func TestProvidersListsRegistrations(t *testing.T) {
	if err := RegisterProvider("zeta", func(modelName, apiKey string, baseURL ...string) *Model {
		return &Model{ModelName: modelName}
	}); err != nil {
		t.Fatalf("RegisterProvider failed: %v", err)
	}

	var found bool
	for _, name := range Providers() {
		if name == "zeta" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected zeta in providers, got %v", Providers())
	}
}
