package entities

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/auth"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
)

// Users describes the user accounts. Everyone may read the public
// profile fields; a user may update their own row (image, password),
// while identity fields and roles are administrator-only.
func (reg *Registry) Users() *resource.Resource {
	adminOnly := resource.MinimumRole(model.RoleAdministrator)
	return &resource.Resource{
		Name:  "users",
		Table: "users",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "username", Column: "username", Sortable: true},
			{Name: "realName", Column: "real_name", Sortable: true},
			{Name: "displayName", Column: "display_name", Sortable: true},
			{Name: "image", Column: "image"},
			{Name: "position", Column: "position", Sortable: true},
			{Name: "role", Column: "role", Sortable: true},
			{Name: "groups", DependsOn: []string{"id"}, Compute: userGroups},
		},
		DefaultFields: []string{"id", "displayName", "image"},
		Permission: func(rc *resource.Context, op resource.Op, id string) error {
			if id != "" && rc.Principal != nil {
				if n, err := strconv.ParseInt(id, 10, 64); err == nil && n == rc.Principal.ID {
					return nil
				}
			}
			return adminOnly(rc, op, id)
		},
		IDSelector:   userIDSelector,
		ApplyData:    reg.applyUserData,
		CreatedResponse: func(rc *resource.Context, id int64) interface{} {
			return map[string]interface{}{"id": id}
		},
	}
}

// userIDSelector accepts a numeric id or a username.
func userIDSelector(rc *resource.Context, id string) (resource.Selector, error) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		if n < 0 {
			return resource.Selector{}, apierror.InvalidResourceID("The resource ID must be positive.")
		}
		return resource.Selector{Where: "id = ?", Args: []interface{}{n}}, nil
	}
	return resource.Selector{Where: "username = ?", Args: []interface{}{id}}, nil
}

func (reg *Registry) applyUserData(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
	var data struct {
		Username    *string `json:"username"`
		RealName    *string `json:"realName"`
		DisplayName *string `json:"displayName"`
		Position    *string `json:"position"`
		Role        *string `json:"role"`
		Password    *string `json:"password"`
		Image       *string `json:"image"`
	}
	if err := rc.DecodeBody(&data); err != nil {
		return nil, err
	}

	ws := &resource.WriteSet{}

	admin := model.RoleAdministrator
	if model.HasRole(rc.Principal, &admin) {
		if data.Username != nil {
			ws.Set("username", *data.Username)
		}
		if data.RealName != nil {
			ws.Set("real_name", *data.RealName)
		}
		if data.DisplayName != nil {
			ws.Set("display_name", *data.DisplayName)
		}
		if data.Position != nil {
			ws.Set("position", *data.Position)
		}
		if data.Role != nil {
			role, err := model.ParseRole(*data.Role)
			if err != nil {
				return nil, apierror.InvalidRequestData(err.Error())
			}
			ws.Set("role", role.String())
		}
	}

	if data.Image != nil {
		var mimeType *string
		err := rc.Q.QueryRowContext(rc.Ctx,
			rc.DB.Rebind("SELECT mime_type FROM uploaded_files WHERE id = ?"), *data.Image,
		).Scan(&mimeType)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.InvalidResourceID("There is no file with the specified ID")
		}
		if err != nil {
			return nil, err
		}
		if mimeType == nil || *mimeType != "image/png" {
			return nil, apierror.WrongMimeType("The image specified is not a PNG file.")
		}
		ws.Set("image", *data.Image)
	}

	if data.Password != nil {
		hash, err := auth.HashPassword(*data.Password)
		if err != nil {
			return nil, err
		}
		ws.Set("password_hash", hash)
	}

	if ws.Empty() {
		return nil, apierror.InvalidRequestData("no applicable fields in request body")
	}
	return ws, nil
}

// userGroups lists the group ids a user row belongs to.
func userGroups(rc *resource.Context, row resource.Row) (interface{}, error) {
	ids, err := groupIDs(rc, row.Int64("id"))
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
