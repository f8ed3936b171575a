package appfs

import "embed"

// FS carries the SQL migrations so binaries stay self-contained.
//go:embed migrations
var FS embed.FS
