// Package config provides the default filesystem-rooted ConfigProvider.
package config

import "path/filepath"

// FSConfigProvider resolves tenant and Postgres install paths relative to
// fixed root directories.
type FSConfigProvider struct {
	TenantsRoot string
	PgBin       string
	PgLib       string
}

// New returns an FSConfigProvider rooted at tenantsRoot, with the Postgres
// install located at pgHome/bin and pgHome/lib.
func New(tenantsRoot, pgHome string) *FSConfigProvider {
	return &FSConfigProvider{
		TenantsRoot: tenantsRoot,
		PgBin:       filepath.Join(pgHome, "bin"),
		PgLib:       filepath.Join(pgHome, "lib"),
	}
}

func (c *FSConfigProvider) TenantPath(tenantID string) string {
	return filepath.Join(c.TenantsRoot, tenantID)
}

func (c *FSConfigProvider) PgBinDir() string {
	return c.PgBin
}

func (c *FSConfigProvider) PgLibDir() string {
	return c.PgLib
}
