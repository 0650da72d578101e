// Package web holds the browser side of the live altitude view.
package web

import "embed"

// FS is served at / by the live view server.
//
//go:embed *.html *.css *.js
var FS embed.FS
