package domain

// PurchaseCode is the license token supplied by the buyer.
type PurchaseCode = string

// LicenseVerification is the classified outcome of a remote license check.
type LicenseVerification struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	SiteKey string `json:"site_key,omitempty"`
}
