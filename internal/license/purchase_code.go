package license

import "regexp"

var purchaseCodeExpr = regexp.MustCompile(`^(\w{8})-((\w{4})-){3}(\w{12})$`)

// IsValidPurchaseCode reports whether code has the 8-4-4-4-12 word character shape.
func IsValidPurchaseCode(code string) bool {
	return purchaseCodeExpr.MatchString(code)
}
