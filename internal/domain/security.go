package domain

import "strings"

// SecurityStatus is the verdict of the security-scan provider for a token.
type SecurityStatus string

const (
	SecuritySafe    SecurityStatus = "SAFE"
	SecurityRisk    SecurityStatus = "RISK"
	SecurityScam    SecurityStatus = "SCAM"
	SecurityUnknown SecurityStatus = "UNKNOWN"
)

// String returns the string representation of SecurityStatus.
func (s SecurityStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s SecurityStatus) IsValid() bool {
	switch s {
	case SecuritySafe, SecurityRisk, SecurityScam, SecurityUnknown:
		return true
	default:
		return false
	}
}

// ParseSecurityStatus maps a provider string to a SecurityStatus.
// Anything unrecognized degrades to SecurityUnknown.
func ParseSecurityStatus(s string) SecurityStatus {
	st := SecurityStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return SecurityUnknown
}

// SecurityReport is the security-scan provider's report for a token.
type SecurityReport struct {
	Status    SecurityStatus
	RiskScore float64
	Flags     []string
}
