package rbac

// RolePermissions maps roles to the permissions they hold. Patterns ending in
// "*" are prefix matches; a bare "*" grants everything.
var RolePermissions = map[string][]string{
	"admin": {"*"},
	"teacher": {
		"assignment:*",
		"attempt:view",
		"submission:view",
		"result:view",
		"users:view",
	},
	"student": {
		"assignment:view",
		"attempt:create",
		"attempt:progress",
		"attempt:submit",
		"attempt:abandon",
		"attempt:view-own",
		"submission:view-own",
		"result:view-own",
	},
}
