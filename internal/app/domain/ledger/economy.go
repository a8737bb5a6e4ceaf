package ledger

import (
	"strings"
	"time"
)

// EarningType enumerates the reasons an account can be credited outside of
// peer transfers.
type EarningType string

const (
	EarningAppointmentCompletion EarningType = "appointment_completion"
	EarningPatientFeedback       EarningType = "patient_feedback"
	EarningReferralBonus         EarningType = "referral_bonus"
	EarningPlatformUsage         EarningType = "platform_usage"
	EarningSystemParticipation   EarningType = "system_participation"
	EarningStakingReward         EarningType = "staking_reward"
	EarningDoctorConsultation    EarningType = "doctor_consultation"
)

// EarningTypes lists every earning category.
var EarningTypes = []EarningType{
	EarningAppointmentCompletion,
	EarningPatientFeedback,
	EarningReferralBonus,
	EarningPlatformUsage,
	EarningSystemParticipation,
	EarningStakingReward,
	EarningDoctorConsultation,
}

// Valid reports whether t is a known earning category.
func (t EarningType) Valid() bool {
	for _, known := range EarningTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Description is the human readable label stored on earning records.
func (t EarningType) Description() string {
	switch t {
	case EarningAppointmentCompletion:
		return "Completed appointment"
	case EarningPatientFeedback:
		return "Submitted patient feedback"
	case EarningReferralBonus:
		return "Referral bonus"
	case EarningPlatformUsage:
		return "Daily platform engagement"
	case EarningSystemParticipation:
		return "System participation"
	case EarningStakingReward:
		return "Staking reward"
	case EarningDoctorConsultation:
		return "Doctor consultation fee"
	default:
		return string(t)
	}
}

// ParseEarningType normalises raw and reports whether it names a category.
func ParseEarningType(raw string) (EarningType, bool) {
	t := EarningType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// SpendingType enumerates premium features accounts can pay for.
type SpendingType string

const (
	SpendingAIInsights          SpendingType = "ai_insights"
	SpendingPriorityBooking     SpendingType = "priority_booking"
	SpendingTelemedicine        SpendingType = "telemedicine"
	SpendingExtendedStorage     SpendingType = "extended_storage"
	SpendingPremiumConsultation SpendingType = "premium_consultation"
	SpendingAdvancedFeatures    SpendingType = "advanced_features"
)

// SpendingTypes lists every spending category.
var SpendingTypes = []SpendingType{
	SpendingAIInsights,
	SpendingPriorityBooking,
	SpendingTelemedicine,
	SpendingExtendedStorage,
	SpendingPremiumConsultation,
	SpendingAdvancedFeatures,
}

// Valid reports whether t is a known spending category.
func (t SpendingType) Valid() bool {
	for _, known := range SpendingTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Description is the human readable label stored on spending records.
func (t SpendingType) Description() string {
	switch t {
	case SpendingAIInsights:
		return "AI insights"
	case SpendingPriorityBooking:
		return "Priority booking"
	case SpendingTelemedicine:
		return "Telemedicine session"
	case SpendingExtendedStorage:
		return "Extended storage (monthly)"
	case SpendingPremiumConsultation:
		return "Premium consultation"
	case SpendingAdvancedFeatures:
		return "Advanced features (monthly)"
	default:
		return string(t)
	}
}

// ParseSpendingType normalises raw and reports whether it names a category.
func ParseSpendingType(raw string) (SpendingType, bool) {
	t := SpendingType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// EarningRecord is a per-user secondary index entry for an earn operation.
type EarningRecord struct {
	Account     Account     `json:"account"`
	EarningType EarningType `json:"earning_type"`
	Amount      uint64      `json:"amount"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
	TxIndex     uint64      `json:"tx_index"`
}

// SpendingRecord is a per-user secondary index entry for a spend operation.
type SpendingRecord struct {
	Account      Account      `json:"account"`
	SpendingType SpendingType `json:"spending_type"`
	Amount       uint64       `json:"amount"`
	Description  string       `json:"description"`
	Timestamp    time.Time    `json:"timestamp"`
	TxIndex      uint64       `json:"tx_index"`
}
