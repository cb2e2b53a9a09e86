package models

// DenialReason identifies why an eligibility check refused a candidate.
// Denials are ordinary outcomes, not errors; they are rendered to the user
// and never logged as failures.
type DenialReason string

const (
	DenialNone            DenialReason = ""
	DenialGuestAccess     DenialReason = "GUEST_ACCESS"
	DenialAlreadyEnrolled DenialReason = "ALREADY_ENROLLED"
	DenialDisabled        DenialReason = "INSTANCE_DISABLED"
	DenialNotStarted      DenialReason = "BEFORE_START_DATE"
	DenialEnded           DenialReason = "AFTER_END_DATE"
	DenialNoNewEnrols     DenialReason = "NEW_ENROLS_CLOSED"
	DenialMaxReached      DenialReason = "MAX_ENROLLED_REACHED"
	DenialInvalidKey      DenialReason = "INVALID_KEY"
	DenialNotInCohort     DenialReason = "NOT_IN_COHORT"
)

// Decision is the outcome of an eligibility evaluation.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Allow returns the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a denial with a user-facing message.
func Deny(reason DenialReason, message string) Decision {
	return Decision{Allowed: false, Reason: reason, Message: message}
}
