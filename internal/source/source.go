// Package source provides document-source adapters: listings of live
// markdown files with lazy content reads.
package source

import "context"

// File is one live document: a stable path and an on-demand content read.
type File interface {
	Path() string
	Content(ctx context.Context) (string, error)
}
