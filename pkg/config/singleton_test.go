package config

import (
	"sync"
	"testing"
)

// reset clears the global configuration between tests.
func reset() {
	configMutex.Lock()
	globalConfig = nil
	globalPath = ""
	configMutex.Unlock()
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	reset()
	t.Cleanup(reset)

	path := writeConfig(t, t.TempDir(), minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("GetConfig() = nil after Initialize")
	}
	if len(cfg.Backends) != 2 {
		t.Errorf("len(Backends) = %d, want 2", len(cfg.Backends))
	}
	if ConfigPath() != path {
		t.Errorf("ConfigPath() = %q, want %q", ConfigPath(), path)
	}

	// Second call is ignored.
	if err := Initialize("does-not-exist.yaml"); err != nil {
		t.Errorf("second Initialize() error = %v, want nil", err)
	}
	if GetConfig() != cfg {
		t.Error("second Initialize() replaced the configuration")
	}
}

func TestInitialize_Error(t *testing.T) {
	reset()
	t.Cleanup(reset)

	if err := Initialize("does-not-exist.yaml"); err == nil {
		t.Fatal("Initialize() error = nil, want error")
	}
	if GetConfig() != nil {
		t.Error("GetConfig() != nil after failed Initialize")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	reset()
	t.Cleanup(reset)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic")
		}
	}()
	MustGetConfig()
}

func TestReloadConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	original := GetConfig()

	writeConfig(t, dir, `
backends:
  - id: primary
    enabled: false
    url: "https://primary.example.com"
`)
	prev, next, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if prev != original {
		t.Error("ReloadConfig() prev is not the original configuration")
	}
	if GetConfig() != next {
		t.Error("GetConfig() does not return the reloaded configuration")
	}
	if next.Backends[0].IsEnabled() {
		t.Error("reloaded backend enabled = true, want false")
	}

	writeConfig(t, dir, "backends: [")
	if _, _, err := ReloadConfig(path); err == nil {
		t.Fatal("ReloadConfig() error = nil for broken file")
	}
	if GetConfig() != next {
		t.Error("failed ReloadConfig() replaced the configuration")
	}
}

func TestGetConfig_Concurrent(t *testing.T) {
	reset()
	t.Cleanup(reset)
	SetConfig(validConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = GetConfig()
		}()
		go func() {
			defer wg.Done()
			SetConfig(validConfig())
		}()
	}
	wg.Wait()

	if GetConfig() == nil {
		t.Error("GetConfig() = nil after concurrent SetConfig")
	}
}
