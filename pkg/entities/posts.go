package entities

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
)

type postData struct {
	Slug          string  `json:"slug"`
	Title         string  `json:"title"`
	Group         *int64  `json:"group"`
	PublishedAt   *string `json:"publishedAt"`
	RelevantUntil *string `json:"relevantUntil"`
	Excerpt       string  `json:"excerpt"`
	Content       string  `json:"content"`
	Author        *int64  `json:"author"`
}

// Posts describes news articles. Posts may belong to a group; members
// of that group can write them without the editor role, which is how
// e.g. the youth group maintains its own page.
func (reg *Registry) Posts() *resource.Resource {
	editorOnly := resource.MinimumRole(model.RoleEditor)
	return &resource.Resource{
		Name:  "posts",
		Table: "posts",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "slug", Column: "slug", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "group", Column: "group_id", Sortable: true},
			{Name: "publishedAt", Column: "published_at", Sortable: true},
			{Name: "relevantUntil", Column: "relevant_until", Sortable: true},
			{Name: "excerpt", Column: "excerpt"},
			{Name: "content", Column: "content"},
			{Name: "author", Column: "author"},
		},
		DefaultFields: []string{"slug", "title", "publishedAt", "excerpt"},
		Permission: func(rc *resource.Context, op resource.Op, id string) error {
			var existingGroup *int64
			exists := false
			if id != "" {
				n, err := strconv.ParseInt(strings.TrimPrefix(id, "_"), 10, 64)
				if strings.HasPrefix(id, "_") {
					err = rc.Q.QueryRowContext(rc.Ctx,
						rc.DB.Rebind("SELECT group_id FROM posts WHERE slug = ?"), strings.TrimPrefix(id, "_"),
					).Scan(&existingGroup)
				} else if err == nil {
					err = rc.Q.QueryRowContext(rc.Ctx,
						rc.DB.Rebind("SELECT group_id FROM posts WHERE id = ?"), n,
					).Scan(&existingGroup)
				} else {
					return apierror.InvalidResourceID("")
				}
				if errors.Is(err, sql.ErrNoRows) {
					return apierror.InvalidResourceID("")
				}
				if err != nil {
					return err
				}
				exists = true
			}

			ownsExisting := exists && existingGroup != nil &&
				rc.Principal != nil && rc.Principal.InGroup(*existingGroup)
			if exists && !ownsExisting {
				return editorOnly(rc, op, id)
			}
			if op == resource.OpDelete {
				return nil
			}

			var data postData
			if err := rc.DecodeBody(&data); err != nil {
				return err
			}
			if rc.Principal == nil || data.Group == nil || !rc.Principal.InGroup(*data.Group) {
				return editorOnly(rc, op, id)
			}
			return nil
		},
		IDSelector:   postIDSelector,
		ListSelector: postListSelector,
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			var data postData
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}

			if data.Group != nil {
				exists, err := rowExists(rc, "groups", "id", *data.Group)
				if err != nil {
					return nil, err
				}
				if !exists {
					return nil, apierror.InvalidResourceID(fmt.Sprintf("There is no group with the ID %d.", *data.Group))
				}
			}

			if data.Author != nil {
				editor := model.RoleEditor
				if !model.HasRole(rc.Principal, &editor) {
					return nil, apierror.InsufficientPermissions("You are not allowed to change the post's author.", nil)
				}
				exists, err := rowExists(rc, "users", "id", *data.Author)
				if err != nil {
					return nil, err
				}
				if !exists {
					return nil, apierror.InvalidResourceID(fmt.Sprintf("There is no user with the ID %d.", *data.Author))
				}
			}

			publishedAt, err := parseOptionalTimestamp(data.PublishedAt)
			if err != nil {
				return nil, err
			}
			relevantUntil, err := parseOptionalTimestamp(data.RelevantUntil)
			if err != nil {
				return nil, err
			}

			ws := &resource.WriteSet{}
			ws.Set("slug", data.Slug)
			ws.Set("title", data.Title)
			ws.Set("published_at", publishedAt)
			ws.Set("relevant_until", relevantUntil)
			ws.Set("excerpt", data.Excerpt)
			ws.Set("content", data.Content)
			if data.Group != nil {
				ws.Set("group_id", *data.Group)
			} else {
				ws.Set("group_id", nil)
			}
			if data.Author != nil {
				ws.Set("author", *data.Author)
			} else if !isUpdate {
				ws.Set("author", rc.Principal.ID)
			}
			return ws, nil
		},
		CreatedResponse: func(rc *resource.Context, id int64) interface{} {
			return map[string]interface{}{"id": id}
		},
	}
}

// postIDSelector accepts a numeric id or an underscore-prefixed slug,
// so the website can address articles by their readable name.
func postIDSelector(rc *resource.Context, id string) (resource.Selector, error) {
	if strings.HasPrefix(id, "_") {
		return resource.Selector{Where: "slug = ?", Args: []interface{}{strings.TrimPrefix(id, "_")}}, nil
	}
	return resource.IntIDSelector("id")(rc, id)
}

func postListSelector(rc *resource.Context) (*resource.Selector, error) {
	onlyRelevant, err := queryBool(rc, "onlyRelevant", false)
	if err != nil {
		return nil, err
	}
	onlyPublished, err := queryBool(rc, "onlyPublished", true)
	if err != nil {
		return nil, err
	}
	groupValue := rc.Request.URL.Query().Get("group")
	_, groupGiven := rc.Request.URL.Query()["group"]
	onlyOwnGroup := groupValue == "own"

	editor := model.RoleEditor
	if !onlyPublished && (rc.Principal == nil || (!model.HasRole(rc.Principal, &editor) && !onlyOwnGroup)) {
		return nil, apierror.InsufficientPermissions("You are not allowed to access posts which were not published yet.", nil)
	}

	var conditions []string
	var args []interface{}
	if onlyRelevant {
		conditions = append(conditions, "(relevant_until IS NULL OR relevant_until > ?)")
		args = append(args, nowStamp())
	}
	if onlyPublished {
		conditions = append(conditions, "published_at <= ?")
		args = append(args, nowStamp())
	}
	if groupGiven {
		switch {
		case onlyOwnGroup:
			if rc.Principal == nil || len(rc.Principal.GroupIDs) == 0 {
				conditions = append(conditions, "1 = 0")
			} else {
				conditions = append(conditions, fmt.Sprintf("group_id IN (%s)", int64List(rc.Principal.GroupIDs)))
			}
		case groupValue == "general":
			conditions = append(conditions, "group_id IS NULL")
		default:
			n, err := strconv.ParseInt(groupValue, 10, 64)
			if err != nil {
				return nil, apierror.InvalidRequestParam("group")
			}
			conditions = append(conditions, "group_id = ?")
			args = append(args, n)
		}
	}

	if len(conditions) == 0 {
		return nil, nil
	}
	return &resource.Selector{Where: strings.Join(conditions, " AND "), Args: args}, nil
}
