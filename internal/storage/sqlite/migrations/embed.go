package migrations

import "embed"

//go:embed events/*.sql
var EventsFS embed.FS

//go:embed derived/*.sql
var DerivedFS embed.FS
