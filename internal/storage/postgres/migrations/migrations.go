// Package migrations embeds the golang-migrate SQL migrations for the
// postgres storage backend's SensorData schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
