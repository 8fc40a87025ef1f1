package mongostore

import (
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go.crudcast.dev/internal/crud"
)

// buildListPipeline assembles the aggregation pipeline for queries that join
// associated collections: lookups first, then the effective match (filter
// plus deep search), sort, the page window, and the projection last so
// association keys survive until joins are done.
func (s *Store) buildListPipeline(opts crud.Options) mongo.Pipeline {
	pipeline := mongo.Pipeline{}

	for _, field := range s.sortedLoadedFields() {
		assoc := s.cfg.Associations[field]
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.M{
			"from":         assoc.From,
			"localField":   field,
			"foreignField": "_id",
			"as":           field,
		}}})
		if !assoc.Many {
			pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: bson.M{
				"path":                       "$" + field,
				"preserveNullAndEmptyArrays": true,
			}}})
		}
	}

	match := filterDocument(crud.And(opts.Filter, s.searchFilter(opts.Search)))
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	if sortDoc := sortDocument(opts.Sort); len(sortDoc) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortDoc}})
	}
	if skip := opts.Skip(); skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit := opts.Limit(); limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	if projection := projectionDocument(opts.Projection); len(projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: projection}})
	}

	return pipeline
}

// searchFilter translates the search parameter into a case-insensitive
// substring match across the configured searchable fields, root and
// associated alike.
func (s *Store) searchFilter(search string) crud.Filter {
	if search == "" {
		return nil
	}
	paths := append([]string{}, s.cfg.SearchFields...)
	for _, field := range s.sortedAssociationFields() {
		for _, sub := range s.cfg.Associations[field].SearchFields {
			paths = append(paths, field+"."+sub)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	pattern := regexp.QuoteMeta(search)
	terms := make([]crud.Filter, 0, len(paths))
	for _, path := range paths {
		terms = append(terms, crud.Filter{
			path: primitive.Regex{Pattern: pattern, Options: "i"},
		})
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return crud.Filter{"$or": toAnySlice(terms)}
}

func (s *Store) sortedLoadedFields() []string {
	fields := make([]string, 0, len(s.cfg.Associations))
	for field := range s.loadedAssociations() {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (s *Store) sortedAssociationFields() []string {
	fields := make([]string, 0, len(s.cfg.Associations))
	for field := range s.cfg.Associations {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func filterDocument(filter crud.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func sortDocument(fields []crud.SortField) bson.D {
	doc := bson.D{}
	for _, field := range fields {
		direction := 1
		if field.Descending {
			direction = -1
		}
		doc = append(doc, bson.E{Key: field.Field, Value: direction})
	}
	return doc
}

func projectionDocument(projection crud.Projection) bson.M {
	doc := bson.M{}
	switch projection.Mode {
	case crud.ProjectInclude:
		for _, field := range projection.Fields {
			doc[field] = 1
		}
	case crud.ProjectExclude:
		for _, field := range projection.Fields {
			doc[field] = 0
		}
	}
	return doc
}

func toAnySlice(filters []crud.Filter) []any {
	out := make([]any, len(filters))
	for i, f := range filters {
		out[i] = f
	}
	return out
}
