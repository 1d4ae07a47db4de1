// Package resource implements the generic resource router: given a
// declarative field/permission description of an entity, it exposes
// list/get/create/update/delete HTTP endpoints with field projection,
// sorting, filtering and pagination.
//
// The router never owns entity state. Each concrete entity supplies a
// Resource descriptor (constructed once at startup, immutable
// thereafter) and the router orchestrates storage access around the
// entity's hooks.
package resource

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

// Op identifies a router operation for permission checks.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Hooks run their reads through the Context's Queryer so that
// permission checks and data validation happen inside the same
// transaction as the mutation they guard.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Context carries the request-scoped collaborators into entity hooks.
type Context struct {
	Ctx       context.Context
	DB        *storage.DB
	Q         Queryer
	Request   *http.Request
	Principal *model.Principal

	body       []byte
	bodyLoaded bool
}

// BodyBytes reads the request body once and caches it, so that a
// permission hook and ApplyData can both decode it.
func (rc *Context) BodyBytes() ([]byte, error) {
	if rc.bodyLoaded {
		return rc.body, nil
	}
	data, err := io.ReadAll(rc.Request.Body)
	if err != nil {
		return nil, apierror.InvalidRequestData(err.Error())
	}
	rc.body = data
	rc.bodyLoaded = true
	return data, nil
}

// DecodeBody strictly decodes the cached request body into dest.
// Unknown fields and type mismatches map to INVALID_REQUEST_DATA.
func (rc *Context) DecodeBody(dest interface{}) error {
	data, err := rc.BodyBytes()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apierror.InvalidRequestData(err.Error())
	}
	return nil
}

// Row is one storage row keyed by column name.
type Row map[string]interface{}

// Int64 returns the named column as an int64, tolerating the drivers'
// integer representations.
func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Field describes one named, permission-tagged attribute of an entity.
// A stored field references exactly one persisted column; a computed
// field references a derivation function plus the columns it depends
// on, so the router can build a minimal projection without knowing the
// implementation.
type Field struct {
	Name string

	// Column is the persisted column for stored fields; empty when
	// Compute is set.
	Column string

	// DependsOn lists the columns a computed field needs.
	DependsOn []string

	// Compute derives the field's value from a fetched row.
	Compute func(rc *Context, row Row) (interface{}, error)

	// Sortable puts the field on the sort allow-list. Only stored
	// fields can be sortable.
	Sortable bool

	// ReadRole is the minimum role required to read this field; nil
	// means public.
	ReadRole *model.Role
}

func (f *Field) computed() bool {
	return f.Compute != nil
}

// Selector is a storage predicate: a SQL condition in ?-placeholder
// style plus its arguments.
type Selector struct {
	Where string
	Args  []interface{}
}

// WriteSet is the complete, ordered set of column values for one
// insert or update. It is fully evaluated before the single storage
// write, so a validation failure can never leave a partial write.
type WriteSet struct {
	columns []string
	values  []interface{}
}

// Set appends a column value to the write-set.
func (ws *WriteSet) Set(column string, value interface{}) {
	ws.columns = append(ws.columns, column)
	ws.values = append(ws.values, value)
}

// Empty reports whether no columns were set.
func (ws *WriteSet) Empty() bool {
	return len(ws.columns) == 0
}

// Resource is the unit the router operates on: the declarative
// description of one entity.
type Resource struct {
	// Name identifies the entity in logs.
	Name string

	// Table is the backing table.
	Table string

	// Fields declares every exposed attribute. Names are unique.
	Fields []Field

	// DefaultFields is the non-empty projection used when the request
	// does not name fields. Must be a subset of the declared names.
	DefaultFields []string

	// Permission decides whether the principal may perform op,
	// optionally depending on the target id (empty for create). It may
	// read through rc.Q; for mutations that read happens inside the
	// same transaction as the write.
	Permission func(rc *Context, op Op, id string) error

	// IDSelector turns the path id into a storage predicate.
	IDSelector func(rc *Context, id string) (Selector, error)

	// ListSelector builds the predicate for list requests from
	// entity-specific filter parameters; nil (or a nil return) selects
	// everything.
	ListSelector func(rc *Context) (*Selector, error)

	// ApplyData builds the complete write-set from the request body.
	ApplyData func(rc *Context, isUpdate bool) (*WriteSet, error)

	// CreatedResponse shapes the 201 payload from the inserted row's
	// id; nil responds with null data.
	CreatedResponse func(rc *Context, id int64) interface{}
}

func (res *Resource) field(name string) (*Field, error) {
	for i := range res.Fields {
		if res.Fields[i].Name == name {
			return &res.Fields[i], nil
		}
	}
	return nil, apierror.UnknownField(name)
}

// MinimumRole builds the standard permission hook requiring a minimum
// role regardless of the target resource.
func MinimumRole(role model.Role) func(rc *Context, op Op, id string) error {
	return func(rc *Context, op Op, id string) error {
		if !model.HasRole(rc.Principal, &role) {
			var actual interface{}
			if rc.Principal != nil {
				actual = rc.Principal.Role.String()
			}
			return apierror.RoleTooLow(role.String(), actual)
		}
		return nil
	}
}

// IntIDSelector builds the standard selector for integer-keyed tables.
func IntIDSelector(column string) func(rc *Context, id string) (Selector, error) {
	return func(rc *Context, id string) (Selector, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Selector{}, apierror.InvalidResourceID("")
		}
		if n < 0 {
			return Selector{}, apierror.InvalidResourceID("The resource ID must be positive.")
		}
		return Selector{Where: column + " = ?", Args: []interface{}{n}}, nil
	}
}
