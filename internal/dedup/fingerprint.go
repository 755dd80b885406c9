package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kapitalops/intakebot/internal/domain"
)

// Fingerprint returns a deterministic hash of the draft's semantic fields.
// Two submissions with the same fingerprint are the same transaction for
// deduplication purposes; payment method and exchange rate are deliberately
// excluded so a retried submission differing only in presentation detail
// still collapses.
func Fingerprint(d *domain.DraftTransaction) string {
	fields := []string{
		strconv.FormatInt(d.ActorID, 10),
		d.ObjectName,
		d.Kind.String(),
		d.ExpenseType,
		strconv.FormatFloat(d.Amount, 'f', -1, 64),
		d.Comment,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
