package retrieval

import "errors"

// ErrModerated marks a query rejected by the moderation gate. Callers must
// surface it explicitly (empty results plus the reason) and must never fall
// through to the chat model.
var ErrModerated = errors.New("query flagged by moderation")
