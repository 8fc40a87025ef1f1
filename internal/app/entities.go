// Package app wires the demo account service: users, departments and roles
// exposed through CRUD routers over either storage backend. It is the
// reference assembly for the toolkit; new deployments copy this package and
// swap in their own entities.
package app

import (
	"go.crudcast.dev/internal/crud"
)

// Entity names, used as router mount points, metric labels, and change event
// subjects.
const (
	EntityUsers       = "users"
	EntityDepartments = "departments"
	EntityRoles       = "roles"
)

const emailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`

// UserValidation rejects user payloads without a first name, last name or a
// well-formed email.
func UserValidation() crud.ValidationSchema {
	return crud.ValidationSchema{
		"firstName": crud.Required("first name is required"),
		"lastName":  crud.Required("last name is required"),
		"email":     crud.Matches(emailPattern, "email is malformed"),
	}
}

// DepartmentValidation requires a department name.
func DepartmentValidation() crud.ValidationSchema {
	return crud.ValidationSchema{
		"name": crud.Required("name is required"),
	}
}

// RoleValidation requires a role key.
func RoleValidation() crud.ValidationSchema {
	return crud.ValidationSchema{
		"key": crud.Required("key is required"),
	}
}

// UserSecurity grants ADMIN full access, MODERATOR read and update limited
// to active users, and USER read-only access without the password hash.
func UserSecurity() crud.SecuritySchema {
	return crud.SecuritySchema{
		"ADMIN": {
			crud.OpRead:   crud.Allow(),
			crud.OpCreate: crud.Allow(),
			crud.OpUpdate: crud.Allow(),
			crud.OpDelete: crud.Allow(),
		},
		"MODERATOR": {
			crud.OpRead:   crud.AllowWhere(crud.Filter{"active": true}),
			crud.OpUpdate: crud.AllowWhere(crud.Filter{"active": true}),
		},
		"USER": {
			crud.OpRead: crud.Access{
				Allowed:    true,
				Projection: crud.Exclude("password"),
			},
		},
	}
}

// DepartmentSecurity lets every authenticated role read departments and only
// ADMIN change them.
func DepartmentSecurity() crud.SecuritySchema {
	return crud.SecuritySchema{
		"ADMIN": {
			crud.OpRead:   crud.Allow(),
			crud.OpCreate: crud.Allow(),
			crud.OpUpdate: crud.Allow(),
			crud.OpDelete: crud.Allow(),
		},
		"MODERATOR": {
			crud.OpRead: crud.Allow(),
		},
		"USER": {
			crud.OpRead: crud.Allow(),
		},
	}
}

// RoleSecurity restricts role management to ADMIN; roles are readable by
// everyone authenticated.
func RoleSecurity() crud.SecuritySchema {
	return crud.SecuritySchema{
		"ADMIN": {
			crud.OpRead:   crud.Allow(),
			crud.OpCreate: crud.Allow(),
			crud.OpUpdate: crud.Allow(),
			crud.OpDelete: crud.Allow(),
		},
		"MODERATOR": {
			crud.OpRead: crud.Allow(),
		},
		"USER": {
			crud.OpRead: crud.Allow(),
		},
	}
}

// UserDefaultProjections hides the password hash from list and single reads
// unless a role projection says otherwise.
func UserDefaultProjections() map[crud.Operation]crud.Projection {
	return map[crud.Operation]crud.Projection{
		crud.OpRead: crud.Exclude("password"),
	}
}
