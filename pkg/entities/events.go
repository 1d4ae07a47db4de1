package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
	"github.com/openparish/backend/pkg/storage"
)

// Color is the calendar display color of an event.
type Color string

var eventColors = []Color{
	"GRAY", "RED", "ORANGE", "YELLOW", "GREEN",
	"TEAL", "BLUE", "INDIGO", "PURPLE", "PINK",
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, known := range eventColors {
		if Color(s) == known {
			*c = known
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", s)
}

// Events describes the parish calendar.
func (reg *Registry) Events() *resource.Resource {
	return &resource.Resource{
		Name:  "events",
		Table: "events",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "title", Column: "title", Sortable: true},
			{Name: "creator", Column: "creator"},
			{Name: "color", Column: "color", Sortable: true},
			{Name: "description", Column: "description"},
			{Name: "date", Column: "date", Sortable: true},
			{Name: "endDate", Column: "end_date"},
			{Name: "relatedPost", Column: "related_post"},
		},
		DefaultFields: []string{"id", "title", "color", "date", "endDate"},
		Permission:    resource.MinimumRole(model.RoleEditor),
		IDSelector:    resource.IntIDSelector("id"),
		ListSelector:  eventListSelector,
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			var data struct {
				Title       string  `json:"title"`
				Color       Color   `json:"color"`
				Description string  `json:"description"`
				Date        string  `json:"date"`
				EndDate     *string `json:"endDate"`
				RelatedPost *int64  `json:"relatedPost"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}

			if data.RelatedPost != nil {
				exists, err := rowExists(rc, "posts", "id", *data.RelatedPost)
				if err != nil {
					return nil, err
				}
				if !exists {
					return nil, apierror.InvalidResourceID(fmt.Sprintf("There is no post with the ID %d.", *data.RelatedPost))
				}
			}

			date, err := parseTimestamp(data.Date)
			if err != nil {
				return nil, err
			}
			endDate, err := parseOptionalTimestamp(data.EndDate)
			if err != nil {
				return nil, err
			}

			ws := &resource.WriteSet{}
			if !isUpdate {
				ws.Set("creator", rc.Principal.ID)
			}
			ws.Set("title", data.Title)
			ws.Set("color", string(data.Color))
			ws.Set("description", data.Description)
			ws.Set("date", date)
			ws.Set("end_date", endDate)
			if data.RelatedPost != nil {
				ws.Set("related_post", *data.RelatedPost)
			} else {
				ws.Set("related_post", nil)
			}
			return ws, nil
		},
	}
}

// eventListSelector parses the calendar filter: a month (yyyy-mm), a
// day (yyyy-mm-dd) or an inclusive day range (yyyy-mm-dd:yyyy-mm-dd).
func eventListSelector(rc *resource.Context) (*resource.Selector, error) {
	filter := rc.Request.URL.Query().Get("filter")
	if filter == "" {
		return nil, nil
	}

	var start, end time.Time
	parts := strings.Split(filter, ":")
	switch len(parts) {
	case 2:
		if strings.Count(parts[0], "-") != 2 || strings.Count(parts[1], "-") != 2 {
			return nil, apierror.InvalidEventFilter()
		}
		var err error
		start, err = time.Parse("2006-01-02", parts[0])
		if err != nil {
			return nil, apierror.InvalidEventFilter()
		}
		end, err = time.Parse("2006-01-02", parts[1])
		if err != nil {
			return nil, apierror.InvalidEventFilter()
		}
		end = end.AddDate(0, 0, 1)
	case 1:
		switch strings.Count(parts[0], "-") {
		case 1:
			month, err := time.Parse("2006-01", parts[0])
			if err != nil {
				return nil, apierror.InvalidEventFilter()
			}
			start = month
			end = month.AddDate(0, 1, 0)
		case 2:
			day, err := time.Parse("2006-01-02", parts[0])
			if err != nil {
				return nil, apierror.InvalidEventFilter()
			}
			start = day
			end = day.AddDate(0, 0, 1)
		default:
			return nil, apierror.InvalidEventFilter()
		}
	default:
		return nil, apierror.InvalidEventFilter()
	}

	return &resource.Selector{
		Where: "date >= ? AND date < ?",
		Args:  []interface{}{storage.FormatTime(start), storage.FormatTime(end)},
	}, nil
}
