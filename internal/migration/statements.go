package migration

import (
	"io/fs"
	"sort"
	"strings"
)

// SQLite only decodes time columns declared with its own type names.
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
	"JSONB", "JSON",
)

// UpStatements returns every up-migration statement in version order.
func UpStatements() ([]string, error) {
	names, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		raw, err := embeddedMigrations.ReadFile(name)
		if err != nil {
			return nil, err
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				out = append(out, stmt)
			}
		}
	}
	return out, nil
}

// SQLiteStatements returns UpStatements with column types SQLite can decode.
func SQLiteStatements() ([]string, error) {
	stmts, err := UpStatements()
	if err != nil {
		return nil, err
	}
	for i, stmt := range stmts {
		stmts[i] = sqliteTypes.Replace(stmt)
	}
	return stmts, nil
}
