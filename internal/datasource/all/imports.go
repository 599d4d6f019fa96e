// Package all wires all built-in datasource variants into the adapter
// factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete adapter to run, which in
// turn register their constructors with the datasource package.
//
// In other words, importing this package makes the following source types
// available at runtime:
//
//   - "file"     (bivis/internal/datasource/file)
//   - "database" (bivis/internal/datasource/database)
//   - "api"      (bivis/internal/datasource/api)
//
// Typical usage (in cmd/vizprobe/main.go or a similar wiring layer):
//
//	import (
//	    _ "bivis/internal/datasource/all" // enable all built-in variants
//
//	    "bivis/internal/config"
//	    "bivis/internal/datasource"
//	)
//
//	cfg, err := config.LoadDataSource(path)
//	// ...
//	adapter, err := datasource.Open(cfg)
//
// This pattern keeps variant-specific wiring in a single, small package and
// allows the rest of the application to depend only on the Adapter
// abstraction rather than individual variants.
package all

import (
	_ "bivis/internal/datasource/api"
	_ "bivis/internal/datasource/database"
	_ "bivis/internal/datasource/file"
)
