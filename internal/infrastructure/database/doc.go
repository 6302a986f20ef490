// Package database provides the SQLite connection behind the capture
// session log.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys enabled
//   - Schema migrations loaded from an embedded filesystem
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations are additive. Each file pair is named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql and lives in the top-level
// migrations package, which registers itself with MigrationsFS on import.
package database
