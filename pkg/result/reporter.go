package result

import (
	"fmt"
	"sync/atomic"
)

// Version components of the HAL API.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// MaxErrorLen bounds the last-error buffer.
const MaxErrorLen = 512

// Version returns the HAL API version as "MAJOR.MINOR.PATCH".
func Version() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}

// Reporter keeps the message of the most recent failure. Every operation
// also returns its own error; the reporter only mirrors the latest one for
// callers that poll. Successful calls leave it untouched. Interleaved
// operations overwrite each other's messages.
type Reporter struct {
	last atomic.Pointer[string]
}

// Record stores err's message, truncated to MaxErrorLen bytes, and returns err
// unchanged. A nil err is ignored.
func (r *Reporter) Record(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > MaxErrorLen {
		msg = msg[:MaxErrorLen]
	}
	r.last.Store(&msg)
	return err
}

// LastError returns the message of the most recent failure, or "".
func (r *Reporter) LastError() string {
	if p := r.last.Load(); p != nil {
		return *p
	}
	return ""
}
