package config

import (
	"path/filepath"
	"testing"
)

func TestFSConfigProvider(t *testing.T) {
	c := New("/var/lib/walredo/tenants", "/usr/lib/postgresql/16")

	if got, want := c.TenantPath("tenant-1"), filepath.Join("/var/lib/walredo/tenants", "tenant-1"); got != want {
		t.Errorf("TenantPath() = %q, want %q", got, want)
	}
	if got, want := c.PgBinDir(), filepath.Join("/usr/lib/postgresql/16", "bin"); got != want {
		t.Errorf("PgBinDir() = %q, want %q", got, want)
	}
	if got, want := c.PgLibDir(), filepath.Join("/usr/lib/postgresql/16", "lib"); got != want {
		t.Errorf("PgLibDir() = %q, want %q", got, want)
	}
}
