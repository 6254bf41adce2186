package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint hashes the fields that make two invoice requests financially
// equivalent. Amount is fixed to two decimals so 100 and 100.00 collide,
// currency is case-folded.
func Fingerprint(orderID int64, amount float64, currency string, purpose Purpose) string {
	canonical := fmt.Sprintf("%d|%.2f|%s|%s", orderID, amount, strings.ToUpper(currency), purpose)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
