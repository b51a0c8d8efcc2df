package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

type ApplicationRecord struct {
	ID          string            `gorm:"type:TEXT;primaryKey"`
	SchemeID    string            `gorm:"type:TEXT NOT NULL;index"`
	Identity    string            `gorm:"type:TEXT NOT NULL;index"`
	Fields      map[string]string `gorm:"serializer:json"`
	Status      string            `gorm:"type:TEXT NOT NULL"`
	SubmittedAt time.Time         `gorm:"not null"`
	UpdatedAt   time.Time
}

func (ApplicationRecord) TableName() string { return "applications" }

func (r ApplicationRecord) toModel() models.Application {
	return models.Application{
		ID:          r.ID,
		SchemeID:    r.SchemeID,
		Identity:    r.Identity,
		Fields:      r.Fields,
		Status:      models.ApplicationStatus(r.Status),
		SubmittedAt: r.SubmittedAt,
	}
}

type ApplicationRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	events EventSink
	now    func() time.Time
}

func NewApplicationRepo(db *gorm.DB, baseLog *logger.Logger, events EventSink) *ApplicationRepo {
	return &ApplicationRepo{
		db:     db,
		log:    baseLog.With("repo", "ApplicationRepo"),
		events: sinkOrNop(events),
		now:    time.Now,
	}
}

// Create stores a submitted application and returns it. An application without
// an id gets a fresh uuid. Creating an id that is already stored for the same
// identity returns the stored application unchanged.
func (ar *ApplicationRepo) Create(ctx context.Context, app models.Application) (models.Application, error) {
	if app.ID == "" {
		app.ID = uuid.New().String()
	} else if existing, ok, err := ar.existing(ctx, app); ok || err != nil {
		return existing, err
	}
	app.Status = models.StatusSubmitted
	app.SubmittedAt = ar.now().UTC()

	record := ApplicationRecord{
		ID:          app.ID,
		SchemeID:    app.SchemeID,
		Identity:    app.Identity,
		Fields:      app.Fields,
		Status:      string(app.Status),
		SubmittedAt: app.SubmittedAt,
	}
	if err := ar.db.WithContext(ctx).Create(&record).Error; err != nil {
		// lost a race with a concurrent submit of the same draft
		if existing, ok, gerr := ar.existing(ctx, app); ok && gerr == nil {
			return existing, nil
		}
		return models.Application{}, fmt.Errorf("failed to create application: %w", err)
	}
	ar.log.Info("application submitted", "identity", app.Identity, "scheme_id", app.SchemeID, "application_id", app.ID)
	return app, nil
}

func (ar *ApplicationRepo) existing(ctx context.Context, app models.Application) (models.Application, bool, error) {
	stored, err := ar.Get(ctx, app.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return models.Application{}, false, nil
	case err != nil:
		return models.Application{}, false, err
	case stored.Identity != app.Identity:
		return models.Application{}, false, fmt.Errorf("%w: application %s", ErrAlreadyExists, app.ID)
	}
	ar.log.Debug("application already stored", "identity", app.Identity, "application_id", app.ID)
	return stored, true, nil
}

func (ar *ApplicationRepo) List(ctx context.Context, identity string) ([]models.Application, error) {
	var records []ApplicationRecord
	if err := ar.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("submitted_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.Application, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (ar *ApplicationRepo) Get(ctx context.Context, id string) (models.Application, error) {
	var record ApplicationRecord
	err := ar.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Application{}, ErrNotFound
	}
	if err != nil {
		return models.Application{}, err
	}
	return record.toModel(), nil
}

// UpdateStatus moves an application to status and emits a change event.
func (ar *ApplicationRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	app, err := ar.Get(ctx, id)
	if err != nil {
		return err
	}
	if app.Status == status {
		return nil
	}
	previous := app.Status
	if err := ar.db.WithContext(ctx).
		Model(&ApplicationRecord{}).
		Where("id = ?", id).
		Update("status", string(status)).Error; err != nil {
		return err
	}
	app.Status = status
	ar.events.ApplicationStatusChanged(ctx, app, previous)
	return nil
}
