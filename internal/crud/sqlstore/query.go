package sqlstore

import (
	"fmt"
	"sort"
	"strings"

	"go.crudcast.dev/internal/crud"
)

// assocSeparator joins association alias and column in result-set aliases.
const assocSeparator = "__"

// column resolves a filter/sort field name to a qualified, whitelisted
// column reference. Root fields must be declared in Config.Columns; dotted
// fields ("department.name") must name a column of a loaded association,
// since only loaded associations are joined into filtered queries.
func (s *Store) column(field string) (string, error) {
	if name, sub, ok := strings.Cut(field, "."); ok {
		assoc, exists := s.cfg.Associations[name]
		if exists && assoc.Load {
			for _, col := range assoc.Columns {
				if col == sub {
					return quote(name) + "." + quote(sub), nil
				}
			}
		}
		return "", fmt.Errorf("%w: unknown field %q", crud.ErrMalformedFilter, field)
	}

	if assoc, ok := s.cfg.Associations[field]; ok {
		return quote(s.cfg.Table) + "." + quote(assoc.ForeignKey), nil
	}
	for _, col := range s.cfg.Columns {
		if col == field {
			return quote(s.cfg.Table) + "." + quote(col), nil
		}
	}
	return "", fmt.Errorf("%w: unknown field %q", crud.ErrMalformedFilter, field)
}

// buildWhere renders a filter tree to a SQL condition with placeholder
// arguments. An empty filter renders to "".
func (s *Store) buildWhere(filter crud.Filter, args *[]any) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, key := range keys {
		value := filter[key]
		switch key {
		case "$and", "$or":
			joined, err := s.buildCombinator(key, value, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, joined)
		default:
			condition, err := s.buildFieldCondition(key, value, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, condition)
		}
	}
	return strings.Join(conditions, " AND "), nil
}

func (s *Store) buildCombinator(op string, value any, args *[]any) (string, error) {
	branches, ok := value.([]any)
	if !ok {
		return "", fmt.Errorf("%w: %s expects an array", crud.ErrMalformedFilter, op)
	}
	parts := make([]string, 0, len(branches))
	for _, branch := range branches {
		sub, ok := branch.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: %s branches must be objects", crud.ErrMalformedFilter, op)
		}
		rendered, err := s.buildWhere(sub, args)
		if err != nil {
			return "", err
		}
		if rendered != "" {
			parts = append(parts, "("+rendered+")")
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty %s", crud.ErrMalformedFilter, op)
	}
	glue := " AND "
	if op == "$or" {
		glue = " OR "
	}
	return "(" + strings.Join(parts, glue) + ")", nil
}

func (s *Store) buildFieldCondition(field string, value any, args *[]any) (string, error) {
	col, err := s.column(field)
	if err != nil {
		return "", err
	}

	operators, ok := value.(map[string]any)
	if !ok {
		*args = append(*args, value)
		return col + " = ?", nil
	}

	opKeys := make([]string, 0, len(operators))
	for op := range operators {
		opKeys = append(opKeys, op)
	}
	sort.Strings(opKeys)

	parts := make([]string, 0, len(opKeys))
	for _, op := range opKeys {
		operand := operators[op]
		switch op {
		case "$eq":
			*args = append(*args, operand)
			parts = append(parts, col+" = ?")
		case "$ne":
			*args = append(*args, operand)
			parts = append(parts, col+" <> ?")
		case "$gt":
			*args = append(*args, operand)
			parts = append(parts, col+" > ?")
		case "$gte":
			*args = append(*args, operand)
			parts = append(parts, col+" >= ?")
		case "$lt":
			*args = append(*args, operand)
			parts = append(parts, col+" < ?")
		case "$lte":
			*args = append(*args, operand)
			parts = append(parts, col+" <= ?")
		case "$like":
			*args = append(*args, operand)
			parts = append(parts, col+" LIKE ?")
		case "$in", "$nin":
			values, ok := operand.([]any)
			if !ok || len(values) == 0 {
				return "", fmt.Errorf("%w: %s expects a non-empty array", crud.ErrMalformedFilter, op)
			}
			*args = append(*args, values...)
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			not := ""
			if op == "$nin" {
				not = "NOT "
			}
			parts = append(parts, col+" "+not+"IN ("+placeholders+")")
		default:
			return "", fmt.Errorf("%w: unsupported operator %q", crud.ErrMalformedFilter, op)
		}
	}
	return strings.Join(parts, " AND "), nil
}

// buildSearch renders the deep-search condition: a LIKE %term% disjunction
// across root and associated searchable columns.
func (s *Store) buildSearch(search string, args *[]any) string {
	if search == "" {
		return ""
	}
	term := "%" + escapeLike(search) + "%"

	var parts []string
	for _, field := range s.cfg.SearchFields {
		parts = append(parts, quote(s.cfg.Table)+"."+quote(field)+" LIKE ?")
		*args = append(*args, term)
	}
	for _, name := range s.sortedAssociationFields() {
		for _, sub := range s.cfg.Associations[name].SearchFields {
			parts = append(parts, quote(name)+"."+quote(sub)+" LIKE ?")
			*args = append(*args, term)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (s *Store) buildOrderBy(fields []crud.SortField) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		col, err := s.column(field.Field)
		if err != nil {
			return "", err
		}
		direction := "ASC"
		if field.Descending {
			direction = "DESC"
		}
		parts = append(parts, col+" "+direction)
	}
	return strings.Join(parts, ", "), nil
}

// selectColumns renders the select list: all root columns plus, for each
// loaded association, its columns aliased "<assoc>__<column>".
func (s *Store) selectColumns() string {
	parts := make([]string, 0, len(s.cfg.Columns))
	for _, col := range s.cfg.Columns {
		parts = append(parts, quote(s.cfg.Table)+"."+quote(col))
	}
	for _, name := range s.sortedLoadedFields() {
		for _, col := range s.cfg.Associations[name].Columns {
			parts = append(parts, fmt.Sprintf("%s.%s AS %s",
				quote(name), quote(col), quote(name+assocSeparator+col)))
		}
	}
	return strings.Join(parts, ", ")
}

// joinClause renders LEFT JOINs for the loaded associations, each aliased by
// its field name.
func (s *Store) joinClause(includeSearchOnly bool) string {
	var b strings.Builder
	for _, name := range s.sortedAssociationFields() {
		assoc := s.cfg.Associations[name]
		load := assoc.Load || (includeSearchOnly && len(assoc.SearchFields) > 0)
		if !load {
			continue
		}
		fmt.Fprintf(&b, " LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			quote(assoc.Table), quote(name),
			quote(s.cfg.Table), quote(assoc.ForeignKey),
			quote(name), quote(assoc.IDColumn()))
	}
	return b.String()
}

func (s *Store) sortedAssociationFields() []string {
	fields := make([]string, 0, len(s.cfg.Associations))
	for field := range s.cfg.Associations {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (s *Store) sortedLoadedFields() []string {
	var fields []string
	for _, field := range s.sortedAssociationFields() {
		if s.cfg.Associations[field].Load {
			fields = append(fields, field)
		}
	}
	return fields
}

func quote(identifier string) string {
	return "`" + identifier + "`"
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(term)
}
