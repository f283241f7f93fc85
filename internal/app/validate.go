package app

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/calegria/opsgate/internal/domain"
)

// minAPIKeyLength is the shortest value accepted for an api-key slot.
const minAPIKeyLength = 10

// e164 matches E.164-style phone numbers: a plus, a non-zero leading
// digit, 8 to 15 digits total.
var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// validateSlotValue checks a credential value against name-sensitive
// heuristics and the template's declared kind. The name rules exist
// because templates in the wild name their slots consistently even
// when the kind is left as plain text.
func validateSlotValue(name string, kind domain.CredentialKind, value string) error {
	lower := strings.ToLower(name)

	if kind == domain.CredentialKindAPIKey || strings.Contains(lower, "api_key") {
		if len(value) < minAPIKeyLength {
			return &domain.ValidationError{Field: name, Reason: "api key is too short"}
		}
	}

	if kind == domain.CredentialKindPhone || strings.Contains(lower, "phone") || strings.Contains(lower, "caller_id") {
		if !e164.MatchString(value) {
			return &domain.ValidationError{Field: name, Reason: "must be an E.164 phone number (e.g. +911234567890)"}
		}
	}

	if kind == domain.CredentialKindURL || strings.Contains(lower, "url") {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &domain.ValidationError{Field: name, Reason: "must be an absolute URL"}
		}
	}

	return nil
}

// validResetPeriods is the closed set accepted on entitlement grants.
var validResetPeriods = map[domain.ResetPeriod]bool{
	domain.ResetNone:    true,
	domain.ResetDaily:   true,
	domain.ResetWeekly:  true,
	domain.ResetMonthly: true,
}
