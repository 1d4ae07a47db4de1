package resource

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

// Router mounts Resource descriptors onto an HTTP router.
type Router struct {
	DB         *storage.DB
	Dispatcher *httputil.Dispatcher
}

// NewRouter returns a Router writing through db and reporting errors
// through the dispatcher.
func NewRouter(db *storage.DB, dispatcher *httputil.Dispatcher) *Router {
	return &Router{DB: db, Dispatcher: dispatcher}
}

// Register mounts the five standard endpoints for res under prefix,
// e.g. prefix "/events" yields GET /events, GET /events/{id},
// POST /events, PUT /events/{id} and DELETE /events/{id}.
func (rt *Router) Register(r *mux.Router, prefix string, res *Resource) {
	sub := r.PathPrefix(prefix).Subrouter()
	list := rt.Dispatcher.Handle(rt.list(res))
	sub.HandleFunc("", list).Methods(http.MethodGet)
	sub.HandleFunc("/", list).Methods(http.MethodGet)
	create := rt.Dispatcher.Handle(rt.create(res))
	sub.HandleFunc("", create).Methods(http.MethodPost)
	sub.HandleFunc("/", create).Methods(http.MethodPost)
	sub.HandleFunc("/{id}", rt.Dispatcher.Handle(rt.getOne(res))).Methods(http.MethodGet)
	sub.HandleFunc("/{id}", rt.Dispatcher.Handle(rt.update(res))).Methods(http.MethodPut)
	sub.HandleFunc("/{id}", rt.Dispatcher.Handle(rt.delete(res))).Methods(http.MethodDelete)
}

func (rt *Router) context(r *http.Request) *Context {
	return &Context{
		Ctx:       r.Context(),
		DB:        rt.DB,
		Q:         rt.DB.DB,
		Request:   r,
		Principal: model.PrincipalFromContext(r.Context()),
	}
}

func (rt *Router) list(res *Resource) httputil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		rc := rt.context(r)

		limit, offset, err := httputil.LimitAndOffset(r)
		if err != nil {
			return err
		}
		proj, err := parseFields(rc, res)
		if err != nil {
			return err
		}
		orderBy, err := sortColumn(rc, res)
		if err != nil {
			return err
		}
		asc, err := httputil.QueryBool(r, "asc", true)
		if err != nil {
			return err
		}

		var selector *Selector
		if res.ListSelector != nil {
			selector, err = res.ListSelector(rc)
			if err != nil {
				return err
			}
		}

		query, args := buildSelect(res.Table, proj.columns, selector)
		if orderBy != "" {
			direction := "ASC"
			if !asc {
				direction = "DESC"
			}
			query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)
		}
		// Fetch one extra row to learn whether a further page exists
		// without a second query.
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit+1, offset)

		rows, err := rc.Q.QueryContext(rc.Ctx, rt.DB.Rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		items := []shapedRow{}
		hasMore := false
		for rows.Next() {
			if len(items) == limit {
				hasMore = true
				break
			}
			row, err := scanRow(rows, proj.columns)
			if err != nil {
				return err
			}
			shaped, err := proj.shape(rc, row)
			if err != nil {
				return err
			}
			items = append(items, shaped)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		return httputil.WriteSuccess(w, map[string]interface{}{
			"items":   items,
			"hasMore": hasMore,
		})
	}
}

func (rt *Router) getOne(res *Resource) httputil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		rc := rt.context(r)

		proj, err := parseFields(rc, res)
		if err != nil {
			return err
		}
		selector, err := res.IDSelector(rc, mux.Vars(r)["id"])
		if err != nil {
			return err
		}

		query, args := buildSelect(res.Table, proj.columns, &selector)
		query += " LIMIT 1"
		rows, err := rc.Q.QueryContext(rc.Ctx, rt.DB.Rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return httputil.WriteJSON(w, http.StatusNotFound, map[string]interface{}{"data": nil})
		}
		row, err := scanRow(rows, proj.columns)
		if err != nil {
			return err
		}
		shaped, err := proj.shape(rc, row)
		if err != nil {
			return err
		}
		return httputil.WriteSuccess(w, map[string]interface{}{"data": shaped})
	}
}

func (rt *Router) create(res *Resource) httputil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		rc := rt.context(r)

		var response interface{}
		err := rt.DB.InTx(rc.Ctx, func(tx *sql.Tx) error {
			rc.Q = tx
			if err := rt.checkPermission(rc, res, OpCreate, ""); err != nil {
				return err
			}
			ws, err := res.ApplyData(rc, false)
			if err != nil {
				return err
			}
			id, err := rt.DB.InsertReturningID(rc.Ctx, tx, res.Table, ws.columns, ws.values)
			if err != nil {
				return err
			}
			if res.CreatedResponse != nil {
				response = res.CreatedResponse(rc, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return httputil.WriteCreated(w, map[string]interface{}{"data": response})
	}
}

func (rt *Router) update(res *Resource) httputil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		rc := rt.context(r)
		id := mux.Vars(r)["id"]

		err := rt.DB.InTx(rc.Ctx, func(tx *sql.Tx) error {
			rc.Q = tx
			if err := rt.checkPermission(rc, res, OpUpdate, id); err != nil {
				return err
			}
			selector, err := res.IDSelector(rc, id)
			if err != nil {
				return err
			}
			ws, err := res.ApplyData(rc, true)
			if err != nil {
				return err
			}
			assignments := make([]string, len(ws.columns))
			for i, col := range ws.columns {
				assignments[i] = col + " = ?"
			}
			query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
				res.Table, strings.Join(assignments, ", "), selector.Where)
			args := append(append([]interface{}{}, ws.values...), selector.Args...)
			result, err := tx.ExecContext(rc.Ctx, rt.DB.Rebind(query), args...)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return apierror.InvalidResourceID("")
			}
			return nil
		})
		if err != nil {
			return err
		}
		httputil.WriteNoContent(w)
		return nil
	}
}

func (rt *Router) delete(res *Resource) httputil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		rc := rt.context(r)
		id := mux.Vars(r)["id"]

		err := rt.DB.InTx(rc.Ctx, func(tx *sql.Tx) error {
			rc.Q = tx
			if err := rt.checkPermission(rc, res, OpDelete, id); err != nil {
				return err
			}
			selector, err := res.IDSelector(rc, id)
			if err != nil {
				return err
			}
			query := fmt.Sprintf("DELETE FROM %s WHERE %s", res.Table, selector.Where)
			result, err := tx.ExecContext(rc.Ctx, rt.DB.Rebind(query), selector.Args...)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return apierror.InvalidResourceID("")
			}
			return nil
		})
		if err != nil {
			return err
		}
		httputil.WriteNoContent(w)
		return nil
	}
}

func (rt *Router) checkPermission(rc *Context, res *Resource, op Op, id string) error {
	if res.Permission == nil {
		return nil
	}
	return res.Permission(rc, op, id)
}

func buildSelect(table string, columns []string, selector *Selector) (string, []interface{}) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	var args []interface{}
	if selector != nil && selector.Where != "" {
		query += " WHERE " + selector.Where
		args = append(args, selector.Args...)
	}
	return query, args
}

// scanRow reads the current result row into a column-keyed map,
// normalizing driver byte slices to strings.
func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	values := make([]interface{}, len(columns))
	targets := make([]interface{}, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}
	row := Row{}
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col] = v
	}
	return row, nil
}
