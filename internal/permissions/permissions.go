// Package permissions defines the fixed set of permission kinds and the
// evaluator used to gate every mutating server action. Permissions are
// always evaluated relative to one server; the server owner implicitly
// holds every kind regardless of role assignment.
package permissions

import "slices"

type Permission string

const (
	CreateChannel Permission = "CREATE_CHANNEL"
	DeleteChannel Permission = "DELETE_CHANNEL"
	DeleteServer  Permission = "DELETE_SERVER"
	RenameServer  Permission = "RENAME_SERVER"
	InviteMember  Permission = "INVITE_MEMBER"
	RemoveMember  Permission = "REMOVE_MEMBER"
	ManageRoles   Permission = "MANAGE_ROLES"
)

// All returns every permission kind, in a stable order.
func All() []Permission {
	return []Permission{
		CreateChannel,
		DeleteChannel,
		DeleteServer,
		RenameServer,
		InviteMember,
		RemoveMember,
		ManageRoles,
	}
}

// AllStrings returns every permission kind as strings, the form the
// store persists role permission sets in.
func AllStrings() []string {
	all := All()
	strs := make([]string, len(all))
	for i, p := range all {
		strs[i] = string(p)
	}
	return strs
}

// Valid reports whether p is a known permission kind.
func Valid(p Permission) bool {
	return slices.Contains(All(), p)
}

// Contains reports whether a role's stored permission set includes p.
func Contains(set []string, p Permission) bool {
	return slices.Contains(set, string(p))
}
