package models

// VerificationType names where a traction claim was checked.
type VerificationType string

const (
	VerificationNone     VerificationType = "unverified"
	VerificationTrustMRR VerificationType = "trustmrr"
	VerificationDeFi     VerificationType = "defi"
)

func (v VerificationType) Valid() bool {
	switch v {
	case VerificationNone, VerificationTrustMRR, VerificationDeFi:
		return true
	}
	return false
}

// Verification is the result of checking a founder's traction claim. A claim
// that could not be tied to the founder still comes back, with Verified false
// and Level "claimed".
type Verification struct {
	Type     VerificationType `json:"type"`
	Verified bool             `json:"verified"`
	Level    string           `json:"level,omitempty"`
	Message  string           `json:"message,omitempty"`

	// Subject is the TrustMRR profile URL or the DefiLlama protocol slug.
	Subject      string  `json:"subject,omitempty"`
	Name         string  `json:"name,omitempty"`
	PrimaryLabel string  `json:"primaryLabel,omitempty"`
	PrimaryValue float64 `json:"primaryValue,omitempty"`
}

// Protocol is a DefiLlama search hit.
type Protocol struct {
	Slug     string  `json:"id"`
	Name     string  `json:"name"`
	TVL      float64 `json:"tvl"`
	Category string  `json:"category,omitempty"`
	Twitter  string  `json:"twitter,omitempty"`
	Logo     string  `json:"logo,omitempty"`
}
