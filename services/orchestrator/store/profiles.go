package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

type ProfileRecord struct {
	Identity       string `gorm:"type:TEXT;primaryKey"`
	Name           string `gorm:"type:TEXT"`
	Age            int
	Gender         string `gorm:"type:TEXT"`
	State          string `gorm:"type:TEXT;index"`
	District       string `gorm:"type:TEXT"`
	Occupation     string `gorm:"type:TEXT"`
	IncomeCategory string `gorm:"type:TEXT"`
	Disability     bool
	SocialCategory string `gorm:"type:TEXT"`
	Education      string `gorm:"type:TEXT"`
	FamilySize     int
	Language       string `gorm:"type:TEXT"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ProfileRecord) TableName() string { return "profiles" }

func profileToRecord(p models.Profile) ProfileRecord {
	return ProfileRecord{
		Identity:       p.Identity,
		Name:           p.Name,
		Age:            p.Age,
		Gender:         p.Gender,
		State:          p.State,
		District:       p.District,
		Occupation:     p.Occupation,
		IncomeCategory: p.IncomeCategory,
		Disability:     p.Disability,
		SocialCategory: p.SocialCategory,
		Education:      p.Education,
		FamilySize:     p.FamilySize,
		Language:       p.Language,
	}
}

func (r ProfileRecord) toModel() models.Profile {
	return models.Profile{
		Identity:       r.Identity,
		Name:           r.Name,
		Age:            r.Age,
		Gender:         r.Gender,
		State:          r.State,
		District:       r.District,
		Occupation:     r.Occupation,
		IncomeCategory: r.IncomeCategory,
		Disability:     r.Disability,
		SocialCategory: r.SocialCategory,
		Education:      r.Education,
		FamilySize:     r.FamilySize,
		Language:       r.Language,
		UpdatedAt:      r.UpdatedAt,
	}
}

type ProfileRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	events EventSink
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger, events EventSink) *ProfileRepo {
	return &ProfileRepo{db: db, log: baseLog.With("repo", "ProfileRepo"), events: sinkOrNop(events)}
}

func (pr *ProfileRepo) Get(ctx context.Context, identity string) (models.Profile, error) {
	var record ProfileRecord
	err := pr.db.WithContext(ctx).Where("identity = ?", identity).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, err
	}
	return record.toModel(), nil
}

func (pr *ProfileRepo) Create(ctx context.Context, p models.Profile) error {
	if _, err := pr.Get(ctx, p.Identity); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	record := profileToRecord(p)
	if err := pr.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	pr.log.Info("profile created", "identity", p.Identity)
	return nil
}

// Update replaces the stored profile and emits a change event with both
// snapshots. Writing the values already stored is a no-op.
func (pr *ProfileRepo) Update(ctx context.Context, p models.Profile) error {
	before, err := pr.Get(ctx, p.Identity)
	if err != nil {
		return err
	}
	if profileToRecord(before) == profileToRecord(p) {
		return nil
	}
	record := profileToRecord(p)
	if err := pr.db.WithContext(ctx).
		Model(&ProfileRecord{}).
		Where("identity = ?", p.Identity).
		Select("*").
		Omit("identity", "created_at").
		Updates(&record).Error; err != nil {
		return err
	}
	after, err := pr.Get(ctx, p.Identity)
	if err != nil {
		return err
	}
	pr.events.ProfileChanged(ctx, before, after)
	return nil
}
