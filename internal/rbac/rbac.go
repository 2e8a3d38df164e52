package rbac

// Role constants
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Permission constants
const (
	PermFundEscrow       = "fund_escrow"
	PermConfirmPayment   = "confirm_payment"
	PermReleaseFunds     = "release_funds"
	PermCancelTrade      = "cancel_trade"
	PermRaiseDispute     = "raise_dispute"
	PermSubmitEvidence   = "submit_evidence"
	PermSendMessage      = "send_message"
	PermAcceptResolution = "accept_resolution"
	PermAppeal           = "appeal"
	PermResolveDispute   = "resolve_dispute"
	PermAddNote          = "add_note"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleBuyer: {
		PermConfirmPayment, PermCancelTrade, PermRaiseDispute,
		PermSubmitEvidence, PermSendMessage, PermAcceptResolution, PermAppeal,
	},
	RoleSeller: {
		// The seller deposits the traded asset, so escrow funding and
		// release are seller actions.
		PermFundEscrow, PermReleaseFunds, PermCancelTrade, PermRaiseDispute,
		PermSubmitEvidence, PermSendMessage, PermAcceptResolution, PermAppeal,
	},
	RoleAdmin: {
		PermResolveDispute, PermAddNote,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFundOperation reports whether the permission moves escrowed funds.
func IsFundOperation(permission string) bool {
	return permission == PermFundEscrow || permission == PermReleaseFunds || permission == PermResolveDispute
}
