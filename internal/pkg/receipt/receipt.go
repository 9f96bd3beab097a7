package receipt

import (
	"fmt"
	"math/rand"
	"time"
)

// Generate returns a human-readable receipt number in the form
// RCP<yyyy><mm><4 random digits>, e.g. RCP2024013047.
//
// The random suffix is NOT checked for uniqueness; two purchases in the
// same month can collide. Receipts are display identifiers, not keys;
// the CreditRecord ID is the ledger identity.
func Generate(at time.Time) string {
	return fmt.Sprintf("RCP%04d%02d%04d", at.Year(), int(at.Month()), rand.Intn(10000))
}
