// Package entities declares the concrete resources of the backend:
// churches, service dates, posts, events, groups, users, uploads,
// videos and the fixed-key content snippets. Each resource is a
// declarative description consumed by the generic resource router;
// the package holds no HTTP logic of its own beyond the two custom
// content routes.
package entities

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/files"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/resource"
	"github.com/openparish/backend/pkg/storage"
	"github.com/openparish/backend/pkg/youtube"
)

// Registry wires the entity descriptors to their collaborators.
type Registry struct {
	DB         *storage.DB
	Files      *files.Store
	YouTube    youtube.Client
	Router     *resource.Router
	Dispatcher *httputil.Dispatcher
}

// Register mounts every entity under the given router, which is
// expected to be the /api subrouter.
func (reg *Registry) Register(api *mux.Router) {
	reg.Router.Register(api, "/events", reg.Events())
	reg.Router.Register(api, "/church-service-dates", reg.ChurchServiceDates())
	reg.Router.Register(api, "/churches", reg.Churches())
	reg.Router.Register(api, "/posts", reg.Posts())
	reg.Router.Register(api, "/uploads", reg.Uploads())
	reg.Router.Register(api, "/videos", reg.Videos())
	reg.Router.Register(api, "/groups", reg.Groups())
	reg.Router.Register(api, "/users", reg.Users())
	reg.registerContents(api)
}

func queryBool(rc *resource.Context, name string, def bool) (bool, error) {
	return httputil.QueryBool(rc.Request, name, def)
}

// rowExists checks a foreign-key target inside the caller's
// transaction.
func rowExists(rc *resource.Context, table, column string, value interface{}) (bool, error) {
	var one int
	err := rc.Q.QueryRowContext(rc.Ctx,
		rc.DB.Rebind(fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", table, column)), value,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// parseTimestamp converts an RFC3339 body value to storage form,
// truncated to the minute like all persisted calendar times.
func parseTimestamp(value string) (string, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", apierror.InvalidRequestData(fmt.Sprintf("invalid timestamp %q", value))
	}
	return storage.FormatTime(t.Truncate(time.Minute)), nil
}

func parseOptionalTimestamp(value *string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	s, err := parseTimestamp(*value)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func nowStamp() string {
	return storage.FormatTime(time.Now())
}

func int64List(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	out := strconv.FormatInt(ids[0], 10)
	for _, id := range ids[1:] {
		out += ", " + strconv.FormatInt(id, 10)
	}
	return out
}

// groupIDs loads the ids of the groups a user belongs to, inside the
// caller's transaction.
func groupIDs(rc *resource.Context, userID int64) ([]int64, error) {
	rows, err := rc.Q.QueryContext(rc.Ctx,
		rc.DB.Rebind("SELECT group_id FROM group_members WHERE user_id = ?"), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
