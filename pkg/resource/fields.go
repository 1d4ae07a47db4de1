package resource

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
)

// projection is a validated set of requested fields plus the column
// list required to serve them.
type projection struct {
	fields  []*Field
	columns []string
}

// parseFields resolves the requested projection against the resource's
// declared fields. Unknown names and per-field permission failures are
// rejected here, before any storage access.
func parseFields(rc *Context, res *Resource) (*projection, error) {
	names := res.DefaultFields
	if raw := rc.Request.URL.Query().Get("fields"); raw != "" {
		names = strings.Split(raw, ",")
	}

	p := &projection{}
	seen := map[string]bool{}
	for _, name := range names {
		f, err := res.field(name)
		if err != nil {
			return nil, err
		}
		if f.ReadRole != nil && !model.HasRole(rc.Principal, f.ReadRole) {
			return nil, apierror.FieldAccessNotAllowed(f.Name)
		}
		p.fields = append(p.fields, f)
		if f.computed() {
			for _, col := range f.DependsOn {
				if !seen[col] {
					seen[col] = true
					p.columns = append(p.columns, col)
				}
			}
		} else if !seen[f.Column] {
			seen[f.Column] = true
			p.columns = append(p.columns, f.Column)
		}
	}
	return p, nil
}

// sortColumn resolves the sortBy parameter to a persisted column.
func sortColumn(rc *Context, res *Resource) (string, error) {
	name := rc.Request.URL.Query().Get("sortBy")
	if name == "" {
		return "", nil
	}
	f, err := res.field(name)
	if err != nil {
		return "", err
	}
	if f.computed() || !f.Sortable {
		return "", apierror.FieldNotAllowedForSorting(name)
	}
	return f.Column, nil
}

// shape derives the response object for one row, in projection order.
func (p *projection) shape(rc *Context, row Row) (shapedRow, error) {
	out := shapedRow{}
	for _, f := range p.fields {
		var value interface{}
		if f.computed() {
			v, err := f.Compute(rc, row)
			if err != nil {
				return shapedRow{}, err
			}
			value = v
		} else {
			value = row[f.Column]
		}
		out.names = append(out.names, f.Name)
		out.values = append(out.values, value)
	}
	return out, nil
}

// shapedRow serializes as a JSON object whose keys keep the requested
// field order. A plain map would lose it.
type shapedRow struct {
	names  []string
	values []interface{}
}

func (s shapedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(s.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
