package remote

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
)

// SettingsKey is the cloud_data store_key holding the settings blob.
const SettingsKey = "settings"

// FetchSettings returns the tenant's settings, or nil when none were pushed yet.
func (a *Adapter) FetchSettings(ctx context.Context, tenantID string) (models.Record, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	var row CloudDataRow
	found := true
	err := a.call(ctx, "fetch settings", func(db *gorm.DB) error {
		err := db.Where("tenant_id = ? AND store_key = ?", tenantID, SettingsKey).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return settingsFromRow(row)
}

// PushSettings replaces the tenant's settings blob. Users never travel inside it.
func (a *Adapter) PushSettings(ctx context.Context, tenantID string, rec models.Record) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if owner := rec.TenantID(); owner != "" && owner != tenantID {
		return apperrors.Newf(apperrors.ErrTenantScope, "settings belong to tenant %s", owner)
	}
	row, err := settingsToRow(tenantID, rec)
	if err != nil {
		return err
	}
	return a.call(ctx, "push settings", func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "store_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data_json", "updated_at"}),
		}).Create(&row).Error
	})
}

func settingsToRow(tenantID string, rec models.Record) (CloudDataRow, error) {
	data := rec.Clone()
	delete(data, models.SettingsUsersField)
	delete(data, models.FieldTenantID)
	delete(data, models.FieldUpdatedAt)
	data[models.FieldID] = models.SettingsID

	encoded, err := json.Marshal(data)
	if err != nil {
		return CloudDataRow{}, apperrors.Wrap(apperrors.ErrTranslation, "encode settings", err)
	}
	row := CloudDataRow{TenantID: tenantID, StoreKey: SettingsKey, DataJSON: string(encoded)}
	if s := rec.UpdatedAt(); s != "" {
		t, err := models.ParseTimestamp(s)
		if err != nil {
			return CloudDataRow{}, apperrors.Wrap(apperrors.ErrTranslation, "settings updatedAt", err)
		}
		t = t.UTC()
		row.UpdatedAt = &t
	}
	return row, nil
}

func settingsFromRow(row CloudDataRow) (models.Record, error) {
	rec, err := models.DecodeRecord([]byte(row.DataJSON))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTranslation, "decode settings", err)
	}
	delete(rec, models.SettingsUsersField)
	rec[models.FieldID] = models.SettingsID
	rec[models.FieldTenantID] = row.TenantID
	if row.UpdatedAt != nil {
		rec[models.FieldUpdatedAt] = models.FormatTimestamp(*row.UpdatedAt)
	}
	return rec, nil
}
