package routes

const (
	// Health
	Health  = "/health"
	Metrics = "/metrics"

	// ───────────────────────────────
	// Account (public)
	// ───────────────────────────────
	AccountRegister     = "/api/v1/tenancy/account/register"
	AccountConfirmEmail = "/api/v1/tenancy/account/confirm-email"
	AccountSignIn       = "/api/v1/tenancy/account/sign-in"

	// Account (authenticated)
	AccountMe             = "/api/v1/tenancy/account/me"
	AccountChangePassword = "/api/v1/tenancy/account/change-password"

	// ───────────────────────────────
	// Hierarchy
	// ───────────────────────────────
	Companies          = "/api/v1/tenancy/companies"
	Company            = "/api/v1/tenancy/companies/{id}"
	CompanyRestore     = "/api/v1/tenancy/companies/{id}/restore"
	Condominiums       = "/api/v1/tenancy/condominiums"
	Condominium        = "/api/v1/tenancy/condominiums/{id}"
	CondominiumRestore = "/api/v1/tenancy/condominiums/{id}/restore"
	CondominiumUnits   = "/api/v1/tenancy/condominiums/{id}/units"
	Units              = "/api/v1/tenancy/units"
	Unit               = "/api/v1/tenancy/units/{id}"
	UnitRestore        = "/api/v1/tenancy/units/{id}/restore"

	// ───────────────────────────────
	// Principals
	// ───────────────────────────────
	Principals          = "/api/v1/tenancy/principals"
	Principal           = "/api/v1/tenancy/principals/{id}"
	PrincipalDeactivate = "/api/v1/tenancy/principals/{id}/deactivate"
	PrincipalReactivate = "/api/v1/tenancy/principals/{id}/reactivate"
	Managers            = "/api/v1/tenancy/managers"
	Staff               = "/api/v1/tenancy/staff"
	Owners              = "/api/v1/tenancy/owners"

	// ───────────────────────────────
	// Assignments
	// ───────────────────────────────
	AssignManager  = "/api/v1/tenancy/assignments/manager"
	DismissManager = "/api/v1/tenancy/assignments/manager/dismiss"
	AssignOwner    = "/api/v1/tenancy/assignments/owner"
	UnassignOwner  = "/api/v1/tenancy/assignments/owner/unassign"

	// Audit and maintenance
	AuditTrail = "/api/v1/tenancy/audit/{type}/{id}"
	Reconcile  = "/api/v1/tenancy/reconcile"
)
