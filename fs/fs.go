// Package appfs holds the files embedded in the binaries.
package appfs

import "embed"

var (
	// Migrations holds the goose SQL migrations, under "migrations".
	//go:embed migrations/*.sql
	Migrations embed.FS

	// Templates holds the email templates, under "templates/email".
	// "all:" keeps the "_base" layouts, which a plain directory embed skips.
	//go:embed all:templates
	Templates embed.FS

	//go:embed assets/common-passwords.txt
	CommonPasswords string
)

const MigrationsDir = "migrations"
