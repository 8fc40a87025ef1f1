package app

import (
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.crudcast.dev/internal/common/mongo"
	"go.crudcast.dev/internal/crud"
	"go.crudcast.dev/internal/crud/mongostore"
)

// MongoModels builds the document-store models for the demo entities.
func MongoModels(db *mongodriver.Database, transactions bool) map[string]crud.Model {
	return map[string]crud.Model{
		EntityUsers: mongostore.New(db, mongostore.Config{
			Collection:   "users",
			SearchFields: []string{"firstName", "lastName", "email"},
			Associations: map[string]mongostore.Association{
				"department": {
					From:         "departments",
					Load:         true,
					Cascade:      true,
					SearchFields: []string{"name"},
				},
				"roles": {
					From: "roles",
					Many: true,
				},
			},
			Transactions: transactions,
		}),
		EntityDepartments: mongostore.New(db, mongostore.Config{
			Collection:   "departments",
			SearchFields: []string{"name"},
		}),
		EntityRoles: mongostore.New(db, mongostore.Config{
			Collection:   "roles",
			SearchFields: []string{"key", "name"},
		}),
	}
}

// MongoIndexes returns the index definitions created on startup.
func MongoIndexes() []mongo.IndexDefinition {
	return []mongo.IndexDefinition{
		{
			Collection: "users",
			Keys:       bson.D{{Key: "email", Value: 1}},
			Options:    options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Collection: "users",
			Keys:       bson.D{{Key: "department", Value: 1}},
		},
		{
			Collection: "users",
			Keys:       bson.D{{Key: "createdAt", Value: 1}},
		},
		{
			Collection: "departments",
			Keys:       bson.D{{Key: "name", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			Collection: "roles",
			Keys:       bson.D{{Key: "key", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
	}
}
