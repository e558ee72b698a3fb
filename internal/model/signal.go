package model

import (
	"regexp"
	"time"
)

// SignalType identifies the kind of real-world event a signal records.
type SignalType string

const (
	SignalNoticePublished  SignalType = "notice_published"
	SignalContractAwarded  SignalType = "contract_awarded"
	SignalGrantAwarded     SignalType = "grant_awarded"
	SignalFunding          SignalType = "funding"
	SignalFrameworkExpiry  SignalType = "framework_expiry"
	SignalRepeatBuyerCycle SignalType = "repeat_buyer_cycle"
	SignalContractRenewal  SignalType = "contract_renewal"
)

// ClusterUnknown marks a signal whose CPV cluster could not be resolved.
// Such signals count as weak generic evidence for any cluster of the buyer.
const ClusterUnknown = "cluster_unknown"

var knownSignalTypes = map[SignalType]bool{
	SignalNoticePublished:  true,
	SignalContractAwarded:  true,
	SignalGrantAwarded:     true,
	SignalFunding:          true,
	SignalFrameworkExpiry:  true,
	SignalRepeatBuyerCycle: true,
	SignalContractRenewal:  true,
}

// Valid reports whether the signal type is one of the known enum values.
func (t SignalType) Valid() bool {
	return knownSignalTypes[t]
}

// BuyerLevel reports whether signals of this type apply to every cluster of
// the buyer, bypassing the CPV cluster match. Funding signals are not
// reliably CPV-tagged upstream, so grant_awarded is matched at buyer level.
func (t SignalType) BuyerLevel() bool {
	return t == SignalGrantAwarded
}

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9_]{3,40}$`)

// ValidTenantID reports whether the id matches the tenant id shape accepted
// at every boundary: lowercase, 3-40 chars of [a-z0-9_].
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Signal is an observed real-world event used as forecasting evidence.
// Rows are immutable once written; corrections are new rows.
type Signal struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	SignalType     SignalType `json:"signal_type"`
	BuyerID        string     `json:"buyer_id"`
	CPVClusterID   string     `json:"cpv_cluster_id"` // empty or ClusterUnknown when untagged
	OccurredAt     time.Time  `json:"occurred_at"`
	SignalStrength float64    `json:"signal_strength"` // [0,1]
	SourceQuality  float64    `json:"source_quality"`  // [0,1]
	ValueEUR       float64    `json:"value_eur,omitempty"` // contract/grant value when known, 0 otherwise
	Region         string     `json:"region"`
	RawPayload     []byte     `json:"raw_payload,omitempty"`
}

// Validate checks the signal's shape at the ingestion boundary. Malformed
// rows are rejected rather than coerced.
func (s *Signal) Validate() error {
	if !ValidTenantID(s.TenantID) {
		return &ValidationError{Field: "tenant_id", Reason: "invalid tenant id"}
	}
	if !s.SignalType.Valid() {
		return &ValidationError{Field: "signal_type", Reason: "unknown signal type " + string(s.SignalType)}
	}
	if s.BuyerID == "" {
		return &ValidationError{Field: "buyer_id", Reason: "required"}
	}
	if s.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: "required"}
	}
	if s.SignalStrength < 0 || s.SignalStrength > 1 {
		return &ValidationError{Field: "signal_strength", Reason: "must be in [0,1]"}
	}
	if s.SourceQuality < 0 || s.SourceQuality > 1 {
		return &ValidationError{Field: "source_quality", Reason: "must be in [0,1]"}
	}
	return nil
}
