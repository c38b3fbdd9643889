package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

// idSeq breaks ties between ids generated within the same nanosecond.
// Ids generated later always compare greater lexicographically, which
// the store relies on for deterministic message ordering.
var idSeq uint64

// GenMessageID returns a globally unique, sortable message id.
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%020d-%06d", n, s)
}

// GenThreadID returns a globally unique, sortable thread id.
func GenThreadID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("th-%020d-%06d", n, s)
}
