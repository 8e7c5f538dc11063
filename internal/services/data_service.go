// Package services is the mutation façade business code uses: every write
// lands in the local store and the pending-operations queue together, then
// nudges the sync trigger surface.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/sync/queue"
)

// Notifier is told about committed local writes.
type Notifier interface {
	NotifyWrite(entity models.EntityType)
}

// DataService writes and reads one tenant's entities.
type DataService struct {
	store    *db.TenantStore
	queue    *queue.Queue
	notifier Notifier
	now      func() time.Time
}

// NewDataService creates a DataService. notifier may be nil.
func NewDataService(store *db.TenantStore, q *queue.Queue, notifier Notifier) *DataService {
	return &DataService{
		store:    store,
		queue:    q,
		notifier: notifier,
		now:      time.Now,
	}
}

// TenantID returns the tenant the service is bound to.
func (s *DataService) TenantID() string {
	return s.store.TenantID()
}

// SaveEntity stamps rec and writes it together with an upsert queue row.
// It returns the stored snapshot.
func (s *DataService) SaveEntity(ctx context.Context, entity models.EntityType, rec models.Record) (models.Record, error) {
	if !entity.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "unknown entity type %q", entity)
	}
	if rec == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "record is nil")
	}

	out := rec.Clone()
	if tenant := out.TenantID(); tenant != "" && tenant != s.TenantID() {
		return nil, apperrors.Newf(apperrors.ErrTenantScope, "%s %s belongs to tenant %s", entity, out.ID(), tenant)
	}
	if entity.IsSingleton() {
		out[models.FieldID] = models.SettingsID
		delete(out, models.SettingsUsersField)
	}
	out.Stamp(s.TenantID(), s.now())

	err := s.commit(ctx, entity, models.ActionUpsert, func(tx *db.TenantStore) error {
		if err := tx.Put(ctx, entity, out); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, entity, out.ID(), models.ActionUpsert, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteEntity deletes a record by the entity's policy. Soft-delete types
// keep the row with isDeleted set and queue the tombstone; hard-delete types
// lose the row.
func (s *DataService) DeleteEntity(ctx context.Context, entity models.EntityType, id string) error {
	if !entity.Valid() {
		return apperrors.Newf(apperrors.ErrInvalid, "unknown entity type %q", entity)
	}
	if id == "" {
		return apperrors.New(apperrors.ErrInvalid, "id is required")
	}

	switch entity.DeletePolicy() {
	case models.DeleteSoft:
		return s.commit(ctx, entity, models.ActionDelete, func(tx *db.TenantStore) error {
			current, err := tx.Get(ctx, entity, id)
			if err != nil {
				return err
			}
			tombstone := current.Clone()
			tombstone[models.FieldIsDeleted] = true
			tombstone.Stamp(s.TenantID(), s.now())
			if err := tx.Put(ctx, entity, tombstone); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, entity, id, models.ActionDelete, tombstone)
		})

	case models.DeleteHard:
		return s.commit(ctx, entity, models.ActionDelete, func(tx *db.TenantStore) error {
			if err := tx.Delete(ctx, entity, id); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, entity, id, models.ActionDelete, nil)
		})

	default:
		return apperrors.Newf(apperrors.ErrInvalid, "%s cannot be deleted", entity)
	}
}

// commit runs write in one local transaction and notifies on success.
func (s *DataService) commit(ctx context.Context, entity models.EntityType, action models.Action, write func(tx *db.TenantStore) error) error {
	if err := s.store.WithTx(ctx, write); err != nil {
		logging.Warn("[DataService] Local write failed",
			zap.String("tenant_id", s.TenantID()),
			zap.String("entity", string(entity)),
			zap.String("action", string(action)),
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.Error(err),
		)
		return err
	}

	// best-effort: the queue row already guarantees a later retry
	if s.notifier != nil {
		s.notifier.NotifyWrite(entity)
	}
	return nil
}

func (s *DataService) enqueue(ctx context.Context, tx *db.TenantStore, entity models.EntityType, id string, action models.Action, payload models.Record) error {
	return s.queue.Enqueue(ctx, tx.Querier(), &models.PendingOperation{
		TenantID:   s.TenantID(),
		EntityType: entity,
		RecordID:   id,
		Action:     action,
		Payload:    payload,
	})
}

// ParseWritableEntity parses an entity name for the generic record surfaces.
// Users carry credentials and are only written through SaveUser.
func ParseWritableEntity(name string) (models.EntityType, error) {
	entity, err := models.ParseEntityType(name)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalid, "unknown entity", err)
	}
	if entity == models.EntityUsers {
		return "", apperrors.New(apperrors.ErrPermission, "users are written through SaveUser only")
	}
	return entity, nil
}

// List returns the tenant's records of entity, excluding soft-deleted ones.
func (s *DataService) List(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	if !entity.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "unknown entity type %q", entity)
	}
	return s.store.QueryActive(ctx, entity)
}

// GetRaw returns one stored record, soft-deleted ones included.
func (s *DataService) GetRaw(ctx context.Context, entity models.EntityType, id string) (models.Record, error) {
	if !entity.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "unknown entity type %q", entity)
	}
	return s.store.Get(ctx, entity, id)
}

func save[T any](ctx context.Context, s *DataService, entity models.EntityType, v T) (T, error) {
	var zero T
	rec, err := models.ToRecord(v)
	if err != nil {
		return zero, apperrors.Wrap(apperrors.ErrInvalid, "failed to encode "+string(entity), err)
	}
	stored, err := s.SaveEntity(ctx, entity, rec)
	if err != nil {
		return zero, err
	}
	return models.FromRecord[T](stored)
}

func list[T any](ctx context.Context, s *DataService, entity models.EntityType) ([]T, error) {
	recs, err := s.List(ctx, entity)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := models.FromRecord[T](rec)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt "+string(entity)+" record", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveOrder saves a service order.
func (s *DataService) SaveOrder(ctx context.Context, o models.ServiceOrder) (models.ServiceOrder, error) {
	return save(ctx, s, models.EntityOrders, o)
}

// DeleteOrder soft-deletes a service order.
func (s *DataService) DeleteOrder(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntityOrders, id)
}

// ListOrders returns the active service orders.
func (s *DataService) ListOrders(ctx context.Context) ([]models.ServiceOrder, error) {
	return list[models.ServiceOrder](ctx, s, models.EntityOrders)
}

func (s *DataService) SaveProduct(ctx context.Context, p models.Product) (models.Product, error) {
	return save(ctx, s, models.EntityProducts, p)
}

func (s *DataService) DeleteProduct(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntityProducts, id)
}

func (s *DataService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return list[models.Product](ctx, s, models.EntityProducts)
}

func (s *DataService) SaveSale(ctx context.Context, sale models.Sale) (models.Sale, error) {
	return save(ctx, s, models.EntitySales, sale)
}

func (s *DataService) DeleteSale(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntitySales, id)
}

func (s *DataService) ListSales(ctx context.Context) ([]models.Sale, error) {
	return list[models.Sale](ctx, s, models.EntitySales)
}

func (s *DataService) SaveTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	return save(ctx, s, models.EntityTransactions, t)
}

func (s *DataService) DeleteTransaction(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntityTransactions, id)
}

func (s *DataService) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	return list[models.Transaction](ctx, s, models.EntityTransactions)
}

func (s *DataService) SaveCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	return save(ctx, s, models.EntityCustomers, c)
}

func (s *DataService) DeleteCustomer(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntityCustomers, id)
}

func (s *DataService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return list[models.Customer](ctx, s, models.EntityCustomers)
}

// SaveUser saves a user. An empty PasswordHash keeps the stored one; use
// SetUserPassword to change credentials.
func (s *DataService) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	if u.PasswordHash == "" && u.ID != "" {
		if current, err := s.store.Get(ctx, models.EntityUsers, u.ID); err == nil {
			u.PasswordHash = current.String(passwordHashField)
		}
	}
	return save(ctx, s, models.EntityUsers, u)
}

func (s *DataService) DeleteUser(ctx context.Context, id string) error {
	return s.DeleteEntity(ctx, models.EntityUsers, id)
}

func (s *DataService) ListUsers(ctx context.Context) ([]models.User, error) {
	return list[models.User](ctx, s, models.EntityUsers)
}

// SaveSettings saves the settings singleton. Its Users are ignored; users
// are saved through SaveUser.
func (s *DataService) SaveSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	settings.Users = nil
	return save(ctx, s, models.EntitySettings, settings)
}

// GetSettings returns the settings singleton with Users filled from the
// users collection. A tenant that never saved settings gets an
// unconfigured zero value.
func (s *DataService) GetSettings(ctx context.Context) (models.Settings, error) {
	settings := models.Settings{ID: models.SettingsID, TenantID: s.TenantID()}

	rec, err := s.store.Get(ctx, models.EntitySettings, models.SettingsID)
	switch {
	case err == nil:
		if settings, err = models.FromRecord[models.Settings](rec); err != nil {
			return settings, apperrors.Wrap(apperrors.ErrDatabase, "corrupt settings record", err)
		}
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return settings, err
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return settings, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	settings.Users = users
	return settings, nil
}
