// Error-text classification shared by the client sync engine and the server
// ingestion path. The server records human-readable processing errors on
// submissions; the client decides from that text whether a failure may ever
// be retried automatically.
package domain

import "strings"

// Markers embedded in processing-error text for failures that must never be
// retried. The wording is part of the client/server contract: the sync
// manager parks any queue item whose recorded error carries one of these.
const (
	ErrTextDuplicateNIN = "duplicate NIN"
	ErrTextMissingNIN   = "missing NIN"
)

// IsPermanentSyncError reports whether an error text recorded on a queue item
// or submission belongs to the permanent class (identity conflicts and
// identity-less payloads). Permanent failures are excluded from backoff
// retries and from RetryFailed.
func IsPermanentSyncError(text string) bool {
	if text == "" {
		return false
	}
	return strings.Contains(text, ErrTextDuplicateNIN) ||
		strings.Contains(text, ErrTextMissingNIN)
}
