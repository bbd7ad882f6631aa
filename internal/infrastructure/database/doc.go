// Package database opens the bridge's SQLite store and applies schema
// migrations to it.
//
// The store backs the event and command journal. It runs on a single
// connection in WAL mode so the HTTP API can read while the journal writer
// commits. Migrations are passed in as an fs.FS (see the migrations package
// at the module root) and are tracked in schema_migrations.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
