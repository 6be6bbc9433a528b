package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistry_EmbeddedDefault(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Tenants) == 0 {
		t.Fatal("embedded registry has no tenants")
	}

	shared := reg.Tenant("statewide")
	if shared == nil || !shared.Shared {
		t.Fatalf("embedded registry must carry the shared statewide tenant, got %+v", shared)
	}
	for _, tenant := range reg.Tenants {
		if len(tenant.Sources) == 0 {
			t.Errorf("tenant %s has no sources", tenant.Slug)
		}
	}
}

func TestLoadRegistry_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	content := `tenants:
  - slug: testville
    name: Testville Council
    state: VIC
    priorities: [youth]
    sources:
      - id: tv
        name: Testville Grants
        url: https://testville.example/grants
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Tenants) != 1 {
		t.Fatalf("got %d tenants, want 1", len(reg.Tenants))
	}
	tenant := reg.Tenant("testville")
	if tenant == nil || tenant.Name != "Testville Council" {
		t.Fatalf("tenant = %+v", tenant)
	}
	if reg.Tenant("nope") != nil {
		t.Error("unknown slug should return nil")
	}
}

func TestLoadRegistry_EmptyIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	if err := os.WriteFile(path, []byte("tenants: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatal("empty registry must be rejected")
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	s := Load()
	if s.Port == "" || s.DetailCap <= 0 || s.StaleWindow <= 0 {
		t.Errorf("defaults not applied: %+v", s)
	}
}
