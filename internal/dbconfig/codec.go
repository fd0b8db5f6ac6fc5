// Package dbconfig exposes the database metadata map as a table of rows with
// relational semantics: list, point read, and a validated write path that
// funnels every change through the metadata view's home goroutine.
package dbconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TatyanaKovaleva/rethinkdb/pkg/domain"
)

// Row is the table-shaped projection of one live database: exactly the keys
// "id" and "name", both strings.
type Row map[string]any

// Record is the decoded form of a Row.
type Record struct {
	ID   domain.DatabaseID
	Name domain.Name
}

// ToRow renders a record as a row.
func ToRow(rec Record) Row {
	return Row{
		"id":   rec.ID.String(),
		"name": string(rec.Name),
	}
}

// FromRow validates and decodes a row. The row must carry exactly the fields
// "id" and "name" and nothing else; errors identify the offending field.
func FromRow(row Row) (Record, error) {
	var rec Record

	nameValue, ok := row["name"]
	if !ok {
		return rec, &domain.ValidationError{Field: "name", Msg: "expected a field named `name`"}
	}
	nameStr, ok := nameValue.(string)
	if !ok {
		return rec, &domain.ValidationError{Field: "name", Msg: fmt.Sprintf("expected a string, got %v", nameValue)}
	}
	name, err := domain.ParseName(nameStr)
	if err != nil {
		return rec, &domain.ValidationError{Field: "name", Msg: err.Error()}
	}

	idValue, ok := row["id"]
	if !ok {
		return rec, &domain.ValidationError{Field: "id", Msg: "expected a field named `id`"}
	}
	idStr, ok := idValue.(string)
	if !ok {
		return rec, &domain.ValidationError{Field: "id", Msg: fmt.Sprintf("expected a string, got %v", idValue)}
	}
	id, err := domain.ParseDatabaseID(idStr)
	if err != nil {
		return rec, &domain.ValidationError{Field: "id", Msg: err.Error()}
	}

	if len(row) > 2 {
		var extras []string
		for key := range row {
			if key != "id" && key != "name" {
				extras = append(extras, fmt.Sprintf("`%s`", key))
			}
		}
		sort.Strings(extras)
		return rec, &domain.ValidationError{
			Msg: fmt.Sprintf("unexpected key(s) %s", strings.Join(extras, ", ")),
		}
	}

	rec.ID = id
	rec.Name = name
	return rec, nil
}
