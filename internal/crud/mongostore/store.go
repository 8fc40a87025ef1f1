// Package mongostore implements crud.Model over a MongoDB collection,
// including deep search across associated collections and cascading writes.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.crudcast.dev/internal/common/tsid"
	"go.crudcast.dev/internal/crud"
)

// Association declares a statically-known relation to another collection.
// The owning document stores the related id under the association's field
// name; loading replaces the id with the joined document.
type Association struct {
	// From is the related collection
	From string

	// Many marks an array of related ids instead of a single one
	Many bool

	// Cascade allows a nested object payload: the related document is
	// created together with, and owned by, the parent in one write
	Cascade bool

	// Load joins the related document into list and single reads
	Load bool

	// SearchFields lists fields of the related document included in deep
	// search, addressed as "<field>.<related-field>"
	SearchFields []string
}

// Config is the static field declaration for one collection. It replaces
// runtime schema reflection: every searchable field and association is named
// here at construction time.
type Config struct {
	// Collection is the backing collection name
	Collection string

	// IDProperty is the identifier field, "_id" when empty
	IDProperty string

	// SearchFields lists root fields matched by the search parameter
	SearchFields []string

	// Associations maps field name to its relation declaration
	Associations map[string]Association

	// Transactions wraps cascading writes in a session transaction. Leave
	// off against standalone servers, which reject transactions; cascades
	// then execute sequentially without atomicity.
	Transactions bool
}

// Store is a MongoDB-backed crud.Model.
type Store struct {
	db   *mongo.Database
	coll *mongo.Collection
	cfg  Config
}

// New creates a Store for the configured collection.
func New(db *mongo.Database, cfg Config) *Store {
	if cfg.IDProperty == "" {
		cfg.IDProperty = "_id"
	}
	return &Store{
		db:   db,
		coll: db.Collection(cfg.Collection),
		cfg:  cfg,
	}
}

// GetAll returns the requested page. Plain queries run as a Find; queries
// touching associations (deep search or joined loads) run as an aggregation
// pipeline built by buildListPipeline.
func (s *Store) GetAll(ctx context.Context, opts crud.Options) ([]crud.Entity, error) {
	if s.needsPipeline(opts) {
		cursor, err := s.coll.Aggregate(ctx, s.buildListPipeline(opts))
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)
		return decodeAll(ctx, cursor)
	}

	findOpts := options.Find().
		SetSkip(opts.Skip()).
		SetLimit(opts.Limit())
	if sort := sortDocument(opts.Sort); len(sort) > 0 {
		findOpts.SetSort(sort)
	}
	if projection := projectionDocument(opts.Projection); len(projection) > 0 {
		findOpts.SetProjection(projection)
	}

	match := crud.And(opts.Filter, s.searchFilter(opts.Search))
	cursor, err := s.coll.Find(ctx, filterDocument(match), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeAll(ctx, cursor)
}

// GetOne returns the first matching document or nil.
func (s *Store) GetOne(ctx context.Context, filter crud.Filter, projection crud.Projection) (crud.Entity, error) {
	if len(s.loadedAssociations()) > 0 {
		pipeline := s.buildListPipeline(crud.Options{Size: 1, Filter: filter, Projection: projection})
		cursor, err := s.coll.Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)
		entities, err := decodeAll(ctx, cursor)
		if err != nil || len(entities) == 0 {
			return nil, err
		}
		return entities[0], nil
	}

	findOpts := options.FindOne()
	if doc := projectionDocument(projection); len(doc) > 0 {
		findOpts.SetProjection(doc)
	}

	var entity crud.Entity
	err := s.coll.FindOne(ctx, filterDocument(filter), findOpts).Decode(&entity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(ctx context.Context, filter crud.Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, filterDocument(filter))
}

// AddOne persists payload. Nested payloads for cascade associations are
// created in their own collections first and replaced by their ids on the
// parent; bare ids for declared associations attach existing documents.
func (s *Store) AddOne(ctx context.Context, payload crud.Entity) (crud.Entity, error) {
	doc := clone(payload)
	if doc[s.cfg.IDProperty] == nil {
		doc[s.cfg.IDProperty] = tsid.Generate()
	}

	insert := func(ctx context.Context) error {
		if err := s.resolveAssociations(ctx, doc); err != nil {
			return err
		}
		_, err := s.coll.InsertOne(ctx, doc)
		return err
	}

	var err error
	if s.cfg.Transactions {
		err = s.inTransaction(ctx, insert)
	} else {
		err = insert(ctx)
	}
	if err != nil {
		return nil, wrapWriteError(err)
	}
	return doc, nil
}

// UpdateOne applies payload to the first matching document and returns the
// updated document, or nil when nothing matched.
func (s *Store) UpdateOne(ctx context.Context, filter crud.Filter, payload crud.Entity) (crud.Entity, error) {
	doc := clone(payload)
	delete(doc, s.cfg.IDProperty)
	if len(doc) == 0 {
		return s.GetOne(ctx, filter, crud.Projection{})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated crud.Entity
	err := s.coll.FindOneAndUpdate(ctx, filterDocument(filter), bson.M{"$set": doc}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapWriteError(err)
	}
	return updated, nil
}

// DeleteOne removes the first matching document and returns it, or nil when
// nothing matched. Repeating the call for an already-deleted id is a miss,
// not an error.
func (s *Store) DeleteOne(ctx context.Context, filter crud.Filter) (crud.Entity, error) {
	var deleted crud.Entity
	err := s.coll.FindOneAndDelete(ctx, filterDocument(filter)).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return deleted, nil
}

// resolveAssociations rewrites association fields of doc in place: nested
// objects on cascade associations become freshly created documents, bare
// ids stay as references.
func (s *Store) resolveAssociations(ctx context.Context, doc crud.Entity) error {
	for field, assoc := range s.cfg.Associations {
		value, ok := doc[field]
		if !ok || value == nil {
			continue
		}
		resolved, err := s.resolveAssociationValue(ctx, field, assoc, value)
		if err != nil {
			return err
		}
		doc[field] = resolved
	}
	return nil
}

func (s *Store) resolveAssociationValue(ctx context.Context, field string, assoc Association, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if !assoc.Cascade {
			return nil, fmt.Errorf("association %q does not accept nested payloads", field)
		}
		nested := clone(v)
		if nested["_id"] == nil {
			nested["_id"] = tsid.Generate()
		}
		if _, err := s.db.Collection(assoc.From).InsertOne(ctx, nested); err != nil {
			return nil, err
		}
		return nested["_id"], nil
	case []any:
		if !assoc.Many {
			return nil, fmt.Errorf("association %q is not an array", field)
		}
		ids := make([]any, 0, len(v))
		for _, item := range v {
			id, err := s.resolveAssociationValue(ctx, field, Association{From: assoc.From, Cascade: assoc.Cascade}, item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		// bare identifier: attach by reference
		return value, nil
	}
}

func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) needsPipeline(opts crud.Options) bool {
	if len(s.loadedAssociations()) > 0 {
		return true
	}
	return opts.Search != "" && s.searchTouchesAssociations()
}

func (s *Store) loadedAssociations() map[string]Association {
	loaded := make(map[string]Association)
	for field, assoc := range s.cfg.Associations {
		if assoc.Load || len(assoc.SearchFields) > 0 {
			loaded[field] = assoc
		}
	}
	return loaded
}

func (s *Store) searchTouchesAssociations() bool {
	for _, assoc := range s.cfg.Associations {
		if len(assoc.SearchFields) > 0 {
			return true
		}
	}
	return false
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]crud.Entity, error) {
	var entities []crud.Entity
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func wrapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", crud.ErrConstraintViolation, err)
	}
	return err
}

func clone(e crud.Entity) crud.Entity {
	copied := make(crud.Entity, len(e))
	for k, v := range e {
		copied[k] = v
	}
	return copied
}
