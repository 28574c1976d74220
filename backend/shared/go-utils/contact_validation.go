package utils

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	lookupsv2 "github.com/twilio/twilio-go/rest/lookups/v2"
)

// -----------------------------------------------------------------------
// PHONE NUMBER VALIDATION
// -----------------------------------------------------------------------

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // ITU-T E.164

// IsE164 reports basic E.164 compliance.
func IsE164(number string) bool { return e164Regex.MatchString(number) }

// ValidatePhoneNumber checks syntax locally and, when a Twilio client is
// supplied, confirms the number through Lookups V2.
func ValidatePhoneNumber(ctx context.Context, number string, tw *twilio.RestClient) (bool, error) {
	if !IsE164(number) {
		return false, nil
	}
	if tw == nil {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := tw.LookupsV2.FetchPhoneNumber(number, &lookupsv2.FetchPhoneNumberParams{})
	if err == nil {
		return true, nil
	}
	if restErr, ok := err.(*twilioclient.TwilioRestError); ok {
		if restErr.Status == 404 {
			return false, nil
		}
		return false, fmt.Errorf("twilio lookup failed: %d %s", restErr.Status, restErr.Error())
	}
	return false, err
}

// -----------------------------------------------------------------------
// EMAIL VALIDATION
// -----------------------------------------------------------------------

// NormalizeEmail lowercases and trims an address. Identity lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail accepts a bare address (no display name).
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
