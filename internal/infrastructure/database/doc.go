// Package database provides the SQLite storage layer for netpanel.
//
// It wraps database/sql with the go-sqlite3 driver, applies the pragmas
// the deployment relies on (WAL, busy timeout, foreign keys), restricts
// the connection pool to SQLite's single-writer model, and runs embedded
// schema migrations at startup.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
//
// Migration files live in the top-level migrations package, which
// registers its embedded filesystem here via an init hook.
package database
