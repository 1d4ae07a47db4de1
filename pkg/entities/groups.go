package entities

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
)

// Groups describes the parish groups. A member may edit their own
// group without the editor role; deleting always needs it.
func (reg *Registry) Groups() *resource.Resource {
	editorOnly := resource.MinimumRole(model.RoleEditor)
	return &resource.Resource{
		Name:  "groups",
		Table: "groups",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "description", Column: "description"},
			{Name: "members", DependsOn: []string{"id"}, Compute: groupMembers},
		},
		DefaultFields: []string{"id", "title", "description"},
		Permission: func(rc *resource.Context, op resource.Op, id string) error {
			if op != resource.OpDelete && id != "" {
				n, err := strconv.ParseInt(id, 10, 64)
				if err != nil {
					return apierror.InvalidResourceID("")
				}
				var one int
				err = rc.Q.QueryRowContext(rc.Ctx,
					rc.DB.Rebind("SELECT 1 FROM groups WHERE id = ?"), n,
				).Scan(&one)
				if errors.Is(err, sql.ErrNoRows) {
					return apierror.InvalidResourceID("")
				}
				if err != nil {
					return err
				}
				if rc.Principal != nil && rc.Principal.InGroup(n) {
					return nil
				}
			}
			return editorOnly(rc, op, id)
		},
		IDSelector: resource.IntIDSelector("id"),
		ListSelector: func(rc *resource.Context) (*resource.Selector, error) {
			onlyOwn, err := queryBool(rc, "onlyOwn", false)
			if err != nil {
				return nil, err
			}
			if !onlyOwn || rc.Principal == nil {
				return nil, nil
			}
			if len(rc.Principal.GroupIDs) == 0 {
				return &resource.Selector{Where: "1 = 0"}, nil
			}
			return &resource.Selector{
				Where: fmt.Sprintf("id IN (%s)", int64List(rc.Principal.GroupIDs)),
			}, nil
		},
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			var data struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}
			ws := &resource.WriteSet{}
			ws.Set("title", data.Title)
			ws.Set("description", data.Description)
			return ws, nil
		},
	}
}

// groupMembers lists the user ids belonging to a group row.
func groupMembers(rc *resource.Context, row resource.Row) (interface{}, error) {
	rows, err := rc.Q.QueryContext(rc.Ctx,
		rc.DB.Rebind("SELECT user_id FROM group_members WHERE group_id = ?"), row.Int64("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
