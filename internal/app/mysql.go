package app

import (
	"database/sql"

	"go.crudcast.dev/internal/crud"
	"go.crudcast.dev/internal/crud/sqlstore"
)

// MySQLModels builds the relational models for the demo entities. Column
// whitelists mirror the schema in schema.sql.
func MySQLModels(db *sql.DB) map[string]crud.Model {
	return map[string]crud.Model{
		EntityUsers: sqlstore.New(db, sqlstore.Config{
			Table:        "users",
			Columns:      []string{"id", "firstName", "lastName", "email", "phoneNumber", "password", "active", "createdAt"},
			SearchFields: []string{"firstName", "lastName", "email"},
			Associations: map[string]sqlstore.Association{
				"department": {
					Table:        "departments",
					ForeignKey:   "departmentId",
					Columns:      []string{"id", "name"},
					Load:         true,
					Cascade:      true,
					SearchFields: []string{"name"},
				},
			},
		}),
		EntityDepartments: sqlstore.New(db, sqlstore.Config{
			Table:        "departments",
			Columns:      []string{"id", "name"},
			SearchFields: []string{"name"},
		}),
		EntityRoles: sqlstore.New(db, sqlstore.Config{
			Table:        "roles",
			Columns:      []string{"id", "key", "name"},
			SearchFields: []string{"key", "name"},
		}),
	}
}
