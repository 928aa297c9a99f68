package appfs

import "embed"

// FS holds the SQL migrations, e-mail templates and static assets shipped with the binaries.
//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
