// Package database provides the SQLite connection used to persist
// thermostat state between restarts.
//
// Connections are opened with a busy timeout, foreign keys on, and WAL
// mode when configured. Schema changes are plain SQL files applied in
// version order by Migrate.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
