package accounts

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/templates/mail
var mailTemplatesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MailTemplatesFS returns the mail templates rooted at the template dir.
func MailTemplatesFS() http.FileSystem {
	sub, err := fs.Sub(mailTemplatesFS, "data/templates/mail")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
