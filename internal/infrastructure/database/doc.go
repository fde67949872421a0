// Package database provides SQLite connectivity for the Ruuvi bridge.
//
// The store is deliberately small. It holds the persistent name mappings
// that survive restarts (see device.SQLiteMappingRepository) and the
// schema_migrations bookkeeping table. Sensor readings are never written
// here; they go to InfluxDB.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Embedded, versioned schema migrations
//   - Health checks for the API
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and follow
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql. Each one runs in its own
// transaction.
package database
