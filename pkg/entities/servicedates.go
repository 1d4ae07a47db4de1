package entities

import (
	"context"
	"fmt"
	"time"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/resource"
	"github.com/openparish/backend/pkg/storage"
)

// Service dates that started over an hour ago are useless to visitors
// and get swept rather than archived.
const serviceDateGrace = time.Hour

// SweepExpiredServiceDates deletes service dates that started before
// the grace cutoff. It runs on every list request and periodically
// from the scheduler; both paths share this implementation.
func SweepExpiredServiceDates(ctx context.Context, db *storage.DB) (int64, error) {
	cutoff := storage.FormatTime(time.Now().Add(-serviceDateGrace))
	result, err := db.ExecContext(ctx,
		db.Rebind("DELETE FROM church_service_dates WHERE date < ?"), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep service dates: %w", err)
	}
	return result.RowsAffected()
}

// ChurchServiceDates describes the upcoming service schedule.
func (reg *Registry) ChurchServiceDates() *resource.Resource {
	return &resource.Resource{
		Name:  "church-service-dates",
		Table: "church_service_dates",
		Fields: []resource.Field{
			{Name: "id", Column: "id", Sortable: true},
			{Name: "date", Column: "date", Sortable: true},
			{Name: "church", Column: "church"},
			{Name: "description", Column: "description"},
		},
		DefaultFields: []string{"id", "date", "church"},
		Permission:    resource.MinimumRole(model.RoleEditor),
		IDSelector:    resource.IntIDSelector("id"),
		ListSelector: func(rc *resource.Context) (*resource.Selector, error) {
			if _, err := SweepExpiredServiceDates(rc.Ctx, rc.DB); err != nil {
				return nil, err
			}
			return nil, nil
		},
		ApplyData: func(rc *resource.Context, isUpdate bool) (*resource.WriteSet, error) {
			var data struct {
				Date        string `json:"date"`
				Church      int64  `json:"church"`
				Description string `json:"description"`
			}
			if err := rc.DecodeBody(&data); err != nil {
				return nil, err
			}

			exists, err := rowExists(rc, "churches", "id", data.Church)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, apierror.InvalidResourceID(fmt.Sprintf("There is no church with the ID %d.", data.Church))
			}

			date, err := parseTimestamp(data.Date)
			if err != nil {
				return nil, err
			}
			ws := &resource.WriteSet{}
			ws.Set("date", date)
			ws.Set("church", data.Church)
			ws.Set("description", data.Description)
			return ws, nil
		},
	}
}
