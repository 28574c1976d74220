package utils

const (
	OrganizationName                      = "CondoPrime"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

	// Rendered in listings when a cross-store link is null or dangling.
	UnassignedLabel = "unassigned"
	UnknownLabel    = "unknown"

	ConfirmationTokenBytes = 32
	MinPasswordLength      = 8
)
