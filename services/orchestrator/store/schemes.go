package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/matching"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

type SchemeRecord struct {
	ID                   string             `gorm:"type:TEXT;primaryKey"`
	Name                 string             `gorm:"type:TEXT NOT NULL"`
	Description          string             `gorm:"type:TEXT"`
	Eligibility          models.Eligibility `gorm:"serializer:json;not null"`
	RequiredDocuments    []string           `gorm:"serializer:json"`
	FormFields           []string           `gorm:"serializer:json"`
	Benefit              string             `gorm:"type:TEXT"`
	BenefitAmount        float64
	ApplicationProcess   string `gorm:"type:TEXT"`
	Deadline             *time.Time
	JurisdictionLevel    string `gorm:"type:TEXT NOT NULL;index"`
	JurisdictionState    string `gorm:"type:TEXT"`
	JurisdictionDistrict string `gorm:"type:TEXT"`
	Category             string `gorm:"type:TEXT;index"`
	Active               bool   `gorm:"index"`
	Version              int
	ModifiedAt           time.Time
}

func (SchemeRecord) TableName() string { return "schemes" }

// SchemeVersionRecord is append-only: one row per content change.
type SchemeVersionRecord struct {
	ID        uint              `gorm:"primaryKey"`
	SchemeID  string            `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scheme_version,priority:1"`
	Version   int               `gorm:"not null;uniqueIndex:ux_scheme_version,priority:2"`
	ChangedAt time.Time         `gorm:"not null"`
	Diff      map[string]string `gorm:"serializer:json"`
	Snapshot  models.Scheme     `gorm:"serializer:json"`
}

func (SchemeVersionRecord) TableName() string { return "scheme_versions" }

func schemeToRecord(s models.Scheme) SchemeRecord {
	return SchemeRecord{
		ID:                   s.ID,
		Name:                 s.Name,
		Description:          s.Description,
		Eligibility:          s.Eligibility,
		RequiredDocuments:    s.RequiredDocuments,
		FormFields:           s.FormFields,
		Benefit:              s.Benefit,
		BenefitAmount:        s.BenefitAmount,
		ApplicationProcess:   s.ApplicationProcess,
		Deadline:             s.Deadline,
		JurisdictionLevel:    string(s.Jurisdiction.Level),
		JurisdictionState:    s.Jurisdiction.State,
		JurisdictionDistrict: s.Jurisdiction.District,
		Category:             s.Category,
		Active:               s.Active,
		Version:              s.Version,
		ModifiedAt:           s.UpdatedAt,
	}
}

func (r SchemeRecord) toModel() models.Scheme {
	return models.Scheme{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Eligibility:        r.Eligibility,
		RequiredDocuments:  r.RequiredDocuments,
		FormFields:         r.FormFields,
		Benefit:            r.Benefit,
		BenefitAmount:      r.BenefitAmount,
		ApplicationProcess: r.ApplicationProcess,
		Deadline:           r.Deadline,
		Jurisdiction: models.Jurisdiction{
			Level:    models.JurisdictionLevel(r.JurisdictionLevel),
			State:    r.JurisdictionState,
			District: r.JurisdictionDistrict,
		},
		Category:  r.Category,
		Active:    r.Active,
		Version:   r.Version,
		UpdatedAt: r.ModifiedAt,
	}
}

// SchemeRepo is the versioned scheme catalog. It satisfies matching.Catalog.
type SchemeRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	now      func() time.Time
	onChange []func()
}

func NewSchemeRepo(db *gorm.DB, baseLog *logger.Logger) *SchemeRepo {
	return &SchemeRepo{db: db, log: baseLog.With("repo", "SchemeRepo"), now: time.Now}
}

// OnChange registers fn to run after every committed content change, such as a
// cache invalidation. Register hooks before the repo is shared.
func (sr *SchemeRepo) OnChange(fn func()) {
	sr.onChange = append(sr.onChange, fn)
}

func (sr *SchemeRepo) ActiveSchemes(ctx context.Context) ([]models.Scheme, error) {
	var records []SchemeRecord
	if err := sr.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.Scheme, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (sr *SchemeRepo) Scheme(ctx context.Context, id string) (models.Scheme, error) {
	var record SchemeRecord
	err := sr.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Scheme{}, matching.ErrSchemeNotFound
	}
	if err != nil {
		return models.Scheme{}, err
	}
	return record.toModel(), nil
}

// Upsert writes s as the current version. A version record with the changed-field
// diff is appended whenever content differs; identical content is a no-op.
func (sr *SchemeRepo) Upsert(ctx context.Context, s models.Scheme) (models.Scheme, bool, error) {
	if s.ID == "" {
		return models.Scheme{}, false, fmt.Errorf("scheme id is required")
	}
	if s.Jurisdiction.Level == "" {
		s.Jurisdiction.Level = models.JurisdictionCentral
	}

	var saved models.Scheme
	changed := false
	err := sr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing SchemeRecord
		err := tx.Where("id = ?", s.ID).First(&existing).Error
		var previous *models.Scheme
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			p := existing.toModel()
			previous = &p
		}

		diff, err := diffSchemes(previous, s)
		if err != nil {
			return err
		}
		if len(diff) == 0 {
			saved = *previous
			return nil
		}

		now := sr.now().UTC()
		s.Version = 1
		if previous != nil {
			s.Version = previous.Version + 1
		}
		s.UpdatedAt = now

		record := schemeToRecord(s)
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		version := SchemeVersionRecord{
			SchemeID:  s.ID,
			Version:   s.Version,
			ChangedAt: now,
			Diff:      diff,
			Snapshot:  s,
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		saved = s
		changed = true
		return nil
	})
	if err != nil {
		return models.Scheme{}, false, fmt.Errorf("failed to upsert scheme %s: %w", s.ID, err)
	}
	if changed {
		sr.log.Info("scheme version written", "scheme_id", saved.ID, "version", saved.Version)
		for _, fn := range sr.onChange {
			fn()
		}
	}
	return saved, changed, nil
}

// SetActive toggles availability through the same versioned path.
func (sr *SchemeRepo) SetActive(ctx context.Context, id string, active bool) (models.Scheme, error) {
	s, err := sr.Scheme(ctx, id)
	if err != nil {
		return models.Scheme{}, err
	}
	s.Active = active
	saved, _, err := sr.Upsert(ctx, s)
	return saved, err
}

func (sr *SchemeRepo) Versions(ctx context.Context, id string) ([]models.SchemeVersion, error) {
	var records []SchemeVersionRecord
	if err := sr.db.WithContext(ctx).
		Where("scheme_id = ?", id).
		Order("version").
		Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.SchemeVersion, 0, len(records))
	for _, r := range records {
		out = append(out, models.SchemeVersion{
			SchemeID:  r.SchemeID,
			Version:   r.Version,
			ChangedAt: r.ChangedAt,
			Diff:      r.Diff,
			Snapshot:  r.Snapshot,
		})
	}
	return out, nil
}

type catalogFile struct {
	Schemes []models.Scheme `yaml:"schemes"`
}

// ImportYAML upserts every scheme in a catalog file and returns how many changed.
func (sr *SchemeRepo) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to decode catalog: %w", err)
	}
	changed := 0
	for _, s := range file.Schemes {
		_, ok, err := sr.Upsert(ctx, s)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// diffSchemes compares content fields by their JSON form. A nil previous yields
// every populated field of next.
func diffSchemes(previous *models.Scheme, next models.Scheme) (map[string]string, error) {
	after, err := contentFields(next)
	if err != nil {
		return nil, err
	}
	before := map[string]json.RawMessage{}
	if previous != nil {
		if before, err = contentFields(*previous); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	diff := map[string]string{}
	for _, k := range keys {
		b, a := string(before[k]), string(after[k])
		if b == a {
			continue
		}
		if b == "" {
			b = "null"
		}
		if a == "" {
			a = "null"
		}
		diff[k] = b + " -> " + a
	}
	return diff, nil
}

func contentFields(s models.Scheme) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "version")
	delete(fields, "updated_at")
	return fields, nil
}
