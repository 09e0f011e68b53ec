// Package id issues ULIDs for journal records: trades, decisions and
// backtest runs.
package id

import (
	cryptorand "crypto/rand"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		now := time.Now().UnixNano()
		for i := range seed {
			seed[i] = byte(now >> (8 * (i % 8)))
		}
	}
	// Monotonic keeps IDs issued within one millisecond in issue order.
	entropy = ulid.Monotonic(rand.NewChaCha8(seed), 0)
}

// New returns a ULID stamped with the current time.
func New() string {
	return At(time.Now())
}

// At returns a ULID stamped with t, so records replayed from history sort by
// the bar time they describe.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.UTC()), entropy).String()
}

// Time returns the timestamp encoded in s.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
