package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// applicationRow is the table shape of an ApplicationDocument. Sections are
// stored as plain json, not jsonb, so section order survives a round trip.
type applicationRow struct {
	ID       string         `gorm:"primaryKey;size:64"`
	GrantID  string         `gorm:"size:64;index"`
	Status   string         `gorm:"size:32"`
	Sections datatypes.JSON `gorm:"type:json"`
	Version  int
	Created  time.Time `gorm:"column:created_at;index"`
	Updated  time.Time `gorm:"column:updated_at"`
}

func (applicationRow) TableName() string { return "applications" }

type grantRow struct {
	ID                    string `gorm:"primaryKey;size:64"`
	SourceName            string
	SourceType            string
	SourceURL             string
	Title                 string
	Description           string
	AmountMin             *float64
	AmountMax             *float64
	Deadline              *time.Time
	EligibilityCriteria   datatypes.JSON
	FundingPriorities     datatypes.JSON
	RequiredDocuments     datatypes.JSON
	TargetPopulations     datatypes.JSON
	GeographicRestriction string
}

func (grantRow) TableName() string { return "grants" }

// SQLStore keeps applications and grants in a relational database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore connects with driver ("sqlite" or "postgres") and migrates
// the schema.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; a single connection queues writers instead of failing them.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&applicationRow{}, &grantRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Get(ctx context.Context, id string) (*schema.ApplicationDocument, error) {
	var row applicationRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("application", id)
		}
		return nil, fmt.Errorf("read application %s: %w", id, err)
	}
	return row.toDocument()
}

// Put upserts doc and increments its Version. On failure doc is untouched.
func (s *SQLStore) Put(ctx context.Context, doc *schema.ApplicationDocument) error {
	if err := checkID("application", doc.ID); err != nil {
		return err
	}

	row, err := newApplicationRow(doc)
	if err != nil {
		return err
	}
	row.Version = doc.Version + 1

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"grant_id",
			"status",
			"sections",
			"version",
			"created_at",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store application %s: %w", doc.ID, err)
	}

	doc.Version = row.Version
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&applicationRow{})
	if result.Error != nil {
		return fmt.Errorf("delete application %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("application", id)
	}
	return nil
}

// List returns every application, newest first.
func (s *SQLStore) List(ctx context.Context) ([]*schema.ApplicationDocument, error) {
	var rows []applicationRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	docs := make([]*schema.ApplicationDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SQLStore) GetGrant(ctx context.Context, id string) (*schema.Grant, error) {
	var row grantRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("grant", id)
		}
		return nil, fmt.Errorf("read grant %s: %w", id, err)
	}
	return row.toGrant()
}

// PutGrant creates or replaces a grant record.
func (s *SQLStore) PutGrant(ctx context.Context, grant *schema.Grant) error {
	if err := checkID("grant", grant.ID); err != nil {
		return err
	}

	row, err := newGrantRow(grant)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store grant %s: %w", grant.ID, err)
	}
	return nil
}

// ListGrants returns every grant ordered by ID.
func (s *SQLStore) ListGrants(ctx context.Context) ([]*schema.Grant, error) {
	var rows []grantRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	grants := make([]*schema.Grant, 0, len(rows))
	for i := range rows {
		grant, err := rows[i].toGrant()
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

func newApplicationRow(doc *schema.ApplicationDocument) (*applicationRow, error) {
	sections, err := json.Marshal(doc.Sections)
	if err != nil {
		return nil, fmt.Errorf("encode sections of %s: %w", doc.ID, err)
	}
	return &applicationRow{
		ID:       doc.ID,
		GrantID:  doc.GrantID,
		Status:   string(doc.Status),
		Sections: datatypes.JSON(sections),
		Version:  doc.Version,
		Created:  doc.CreatedAt.UTC(),
		Updated:  doc.UpdatedAt.UTC(),
	}, nil
}

func (r *applicationRow) toDocument() (*schema.ApplicationDocument, error) {
	var sections schema.SectionMap
	if len(r.Sections) > 0 {
		if err := json.Unmarshal(r.Sections, &sections); err != nil {
			return nil, fmt.Errorf("decode sections of %s: %w", r.ID, err)
		}
	}
	return &schema.ApplicationDocument{
		ID:        r.ID,
		GrantID:   r.GrantID,
		Status:    schema.Status(r.Status),
		Sections:  sections,
		Version:   r.Version,
		CreatedAt: r.Created.UTC(),
		UpdatedAt: r.Updated.UTC(),
	}, nil
}

func newGrantRow(g *schema.Grant) (*grantRow, error) {
	lists := make([]datatypes.JSON, 4)
	for i, items := range [][]string{g.EligibilityCriteria, g.FundingPriorities, g.RequiredDocuments, g.TargetPopulations} {
		if items == nil {
			items = []string{}
		}
		data, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("encode grant %s: %w", g.ID, err)
		}
		lists[i] = datatypes.JSON(data)
	}

	return &grantRow{
		ID:                    g.ID,
		SourceName:            g.SourceName,
		SourceType:            g.SourceType,
		SourceURL:             g.SourceURL,
		Title:                 g.Title,
		Description:           g.Description,
		AmountMin:             g.AmountMin,
		AmountMax:             g.AmountMax,
		Deadline:              g.Deadline,
		EligibilityCriteria:   lists[0],
		FundingPriorities:     lists[1],
		RequiredDocuments:     lists[2],
		TargetPopulations:     lists[3],
		GeographicRestriction: g.GeographicRestriction,
	}, nil
}

func (r *grantRow) toGrant() (*schema.Grant, error) {
	g := &schema.Grant{
		ID:                    r.ID,
		SourceName:            r.SourceName,
		SourceType:            r.SourceType,
		SourceURL:             r.SourceURL,
		Title:                 r.Title,
		Description:           r.Description,
		AmountMin:             r.AmountMin,
		AmountMax:             r.AmountMax,
		Deadline:              r.Deadline,
		GeographicRestriction: r.GeographicRestriction,
	}

	targets := []*[]string{&g.EligibilityCriteria, &g.FundingPriorities, &g.RequiredDocuments, &g.TargetPopulations}
	for i, raw := range []datatypes.JSON{r.EligibilityCriteria, r.FundingPriorities, r.RequiredDocuments, r.TargetPopulations} {
		if len(raw) == 0 {
			continue
		}
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode grant %s: %w", r.ID, err)
		}
		if len(items) > 0 {
			*targets[i] = items
		}
	}
	return g, nil
}
