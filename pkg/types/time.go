package types

import "time"

// NowMS returns the current wall-clock time in unix milliseconds, the
// timestamp unit used across all persisted documents.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
