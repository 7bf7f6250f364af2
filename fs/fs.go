// Package appfs embeds runtime assets: database migrations and email templates.
package appfs

import "embed"

// Directory patterns skip _-prefixed files, so the shared base layout
// must be named explicitly.
//
//go:embed migrations templates templates/email/_base.txt
var FS embed.FS
