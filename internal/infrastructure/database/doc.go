// Package database provides SQLite connectivity for the Habitat backend.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - Forward schema migrations from an embedded filesystem
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions because it holds password hashes.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
