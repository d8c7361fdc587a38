package uhfmac

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Because sometimes it's really convenient to have a ternary ?:
func IfThenElse[T any](x bool, a T, b T) T { //nolint:ireturn
	if x {
		return a
	} else {
		return b
	}
}

// Maximum simultaneous KISS TCP clients.
const MAX_NET_CLIENTS = 3

// Can't be "assert" because of conflicts with stretchr/testify/assert, but otherwise, it's compatible enough
func Assert(t bool) {
	if !t {
		_, file, line, _ := runtime.Caller(1)
		panic(fmt.Sprintf("Assertion failed at %s:%d", file, line))
	}
}

// ceilDiv is ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int) int {
	Assert(b > 0)

	return (a + b - 1) / b
}

// sleepCtx waits for d or until ctx is done, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	var timer = time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
