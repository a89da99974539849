package sections

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// TempIDPrefix marks ids assigned locally to items never written remotely.
const TempIDPrefix = "temp-"

var tempSeq atomic.Uint64

// NewTempID returns a unique temporary id built from the current time.
func NewTempID() string {
	return fmt.Sprintf("%s%d-%d", TempIDPrefix, time.Now().UnixMilli(), tempSeq.Add(1))
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// IsDurableID reports whether id was assigned by the remote store.
func IsDurableID(id string) bool {
	return id != "" && !IsTempID(id)
}
