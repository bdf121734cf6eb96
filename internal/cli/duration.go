package cli

import "time"

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
