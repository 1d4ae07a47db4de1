package entities

import (
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
)

// Churches describes the church locations shown on the website.
func (reg *Registry) Churches() *resource.Resource {
	return &resource.Resource{
		Name:  "churches",
		Table: "churches",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "googleMapsID", Column: "google_maps_id"},
		},
		DefaultFields: []string{"id", "title"},
		Permission:    resource.MinimumRole(model.RoleEditor),
		IDSelector:    resource.IntIDSelector("id"),
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			var data struct {
				Title        string `json:"title"`
				GoogleMapsID string `json:"googleMapsID"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}
			ws := &resource.WriteSet{}
			ws.Set("title", data.Title)
			ws.Set("google_maps_id", data.GoogleMapsID)
			return ws, nil
		},
	}
}
