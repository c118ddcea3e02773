package file

import (
	"path/filepath"
	"testing"
)

func TestGatewayConfigStoreSetGetParam(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gateway-config")
	store := NewGatewayConfigStore(dir)

	if _, ok, err := store.GetParam("missing"); err != nil || ok {
		t.Fatalf("expected ok=false for a missing param, got ok=%v err=%v", ok, err)
	}

	if err := store.SetParam("gateway_configs", `["telegram"]`); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	value, ok, err := store.GetParam("gateway_configs")
	if err != nil || !ok || value != `["telegram"]` {
		t.Fatalf("GetParam = (%q, %v, %v), want (%q, true, nil)", value, ok, err, `["telegram"]`)
	}
}

func TestGatewayConfigStoreSecretLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gateway-config")
	store := NewGatewayConfigStore(dir)

	key := "gateway_platform_config_telegram"
	if err := store.SetSecret(key, `{"token":"abc"}`); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	value, ok, err := store.GetSecret(key)
	if err != nil || !ok || value != `{"token":"abc"}` {
		t.Fatalf("GetSecret = (%q, %v, %v)", value, ok, err)
	}

	if err := store.DeleteSecret(key); err != nil {
		t.Fatalf("DeleteSecret failed: %v", err)
	}
	if _, ok, err := store.GetSecret(key); err != nil || ok {
		t.Fatalf("expected secret to be gone after DeleteSecret, ok=%v err=%v", ok, err)
	}

	if err := store.DeleteSecret(key); err != nil {
		t.Fatalf("DeleteSecret on an already-missing key should be a no-op, got %v", err)
	}
}

func TestGatewayConfigStorePersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gateway-config")
	first := NewGatewayConfigStore(dir)
	if err := first.SetParam("k", "v"); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}

	second := NewGatewayConfigStore(dir)
	value, ok, err := second.GetParam("k")
	if err != nil || !ok || value != "v" {
		t.Fatalf("expected a fresh store over the same dir to read persisted value, got (%q, %v, %v)", value, ok, err)
	}
}
