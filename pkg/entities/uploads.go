package entities

import (
	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
)

// Uploads exposes the metadata of stored files for the admin UI.
// Creation goes through the file store's upload endpoint, never
// through here; only the title is editable afterwards.
func (reg *Registry) Uploads() *resource.Resource {
	return &resource.Resource{
		Name:  "uploads",
		Table: "uploaded_files",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "mimeType", Column: "mime_type", Sortable: true},
			{Name: "uploadedAt", Column: "uploaded_at", Sortable: true},
		},
		DefaultFields: []string{"title", "mimeType"},
		Permission:    resource.MinimumRole(model.RoleEditor),
		IDSelector: func(rc *resource.Context, id string) (resource.Selector, error) {
			return resource.Selector{Where: "id = ?", Args: []interface{}{id}}, nil
		},
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			if !isUpdate {
				return nil, apierror.MethodNotAllowed("You can not create files using this endpoint. Use /files instead.")
			}
			var data struct {
				Title *string `json:"title"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}

			// The canonical URL embeds the title; drop the cached record.
			reg.Files.InvalidateRecord(rc.Ctx, mux.Vars(rc.Request)["id"])

			ws := &resource.WriteSet{}
			if data.Title != nil {
				ws.Set("title", *data.Title)
			} else {
				ws.Set("title", nil)
			}
			return ws, nil
		},
	}
}
