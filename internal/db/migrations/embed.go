// Package migrations embeds the SQL schema of the persistent state stores.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the migrations for storage/pgstore.
func Postgres() fs.FS { return sub("postgres") }

// SQLite returns the migrations for storage/sqlitestore.
func SQLite() fs.FS { return sub("sqlite") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		panic(err) // dir is a compile-time constant.
	}
	return f
}
