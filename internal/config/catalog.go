package config

import "fmt"

const (
	CatalogSourcePostgres = "postgres"
	CatalogSourceFile     = "file"
)

// CatalogConfig selects where badge definitions are read from.
type CatalogConfig struct {
	// Source is either the badges table or a static YAML file.
	Source string `envconfig:"SOURCE" default:"postgres" validate:"oneof=postgres file"`

	// SeedFile is upserted into the badges table at control plane start-up
	// (postgres source) or served directly (file source).
	SeedFile string `envconfig:"SEED_FILE"`
}

// Validate checks that a file-backed catalog names its file.
func (c *CatalogConfig) Validate() error {
	if c.Source == CatalogSourceFile && c.SeedFile == "" {
		return fmt.Errorf("catalog seed file is required when the catalog source is %q", CatalogSourceFile)
	}
	return nil
}
