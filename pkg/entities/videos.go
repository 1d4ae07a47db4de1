package entities

import (
	"errors"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
	"github.com/openparish/backend/pkg/youtube"
)

// Videos describes recorded services published on YouTube. Creation
// takes only the video id; the title is resolved through the Data API
// and the entry stays unpublished until an editor sets publishedAt.
func (reg *Registry) Videos() *resource.Resource {
	return &resource.Resource{
		Name:  "videos",
		Table: "videos",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "publishedAt", Column: "published_at", Sortable: true},
			{Name: "youtubeVideoID", Column: "youtube_video_id"},
		},
		DefaultFields: []string{"id", "title", "publishedAt", "youtubeVideoID"},
		Permission:    resource.MinimumRole(model.RoleEditor),
		IDSelector:    resource.IntIDSelector("id"),
		ListSelector: func(rc *resource.Context) (*resource.Selector, error) {
			onlyPublished, err := queryBool(rc, "onlyPublished", true)
			if err != nil {
				return nil, err
			}
			editor := model.RoleEditor
			if !onlyPublished && !model.HasRole(rc.Principal, &editor) {
				return nil, apierror.InsufficientPermissions("You are not allowed to access videos which were not published yet.", nil)
			}
			if !onlyPublished {
				return nil, nil
			}
			return &resource.Selector{Where: "published_at <= ?", Args: []interface{}{nowStamp()}}, nil
		},
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			ws := &resource.WriteSet{}
			if isUpdate {
				var data struct {
					Title       string `json:"title"`
					PublishedAt string `json:"publishedAt"`
				}
				if err := rc.DecodeBody(&data); err != nil {
					return nil, err
				}
				publishedAt, err := parseTimestamp(data.PublishedAt)
				if err != nil {
					return nil, err
				}
				ws.Set("title", data.Title)
				ws.Set("published_at", publishedAt)
				return ws, nil
			}

			var data struct {
				YouTubeVideoID string `json:"youtubeVideoID"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}
			video, err := reg.YouTube.VideoByID(rc.Ctx, data.YouTubeVideoID)
			if errors.Is(err, youtube.ErrVideoNotFound) {
				return nil, apierror.InvalidYouTubeVideoID()
			}
			if err != nil {
				return nil, err
			}
			ws.Set("title", video.Title)
			ws.Set("published_at", nil)
			ws.Set("youtube_video_id", data.YouTubeVideoID)
			return ws, nil
		},
		CreatedResponse: func(rc *resource.Context, id int64) interface{} {
			return map[string]interface{}{"id": id}
		},
	}
}
