// Package invoice generates the human-readable numbers printed on receipts.
// Invoice numbers are distinct from sale ids: they are shown to customers and
// must stay unique for the lifetime of the system, which the store enforces
// with a unique constraint. Generation itself is best-effort random; callers
// retry on a duplicate.
package invoice

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const prefix = "INV"

// Number returns an invoice number of the form INV-YYYYMMDD-XXXXXX where the
// suffix is 6 uppercase hex characters from crypto/rand.
func Number(at time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to a
		// nanosecond suffix so the sale path still produces a usable number.
		return fmt.Sprintf("%s-%s-%d", prefix, at.UTC().Format("20060102"), at.UnixNano()%1000000)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
