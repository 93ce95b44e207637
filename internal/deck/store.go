package deck

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/voicedeck/voicedeck/internal/shared"
)

type Store interface {
	List(ctx context.Context) ([]Slide, error)
	Get(ctx context.Context, id int) (Slide, error)
}

// GormStore reads the deck from Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&Slide{})
}

func (s *GormStore) List(ctx context.Context) ([]Slide, error) {
	var slides []Slide
	if err := s.db.WithContext(ctx).Order("id").Find(&slides).Error; err != nil {
		return nil, err
	}
	return slides, nil
}

func (s *GormStore) Get(ctx context.Context, id int) (Slide, error) {
	var slide Slide
	err := s.db.WithContext(ctx).First(&slide, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Slide{}, shared.ErrNotFound
	}
	if err != nil {
		return Slide{}, err
	}
	return slide, nil
}

func (s *GormStore) Upsert(ctx context.Context, slides []Slide) error {
	for _, slide := range slides {
		if err := s.db.WithContext(ctx).Save(&slide).Error; err != nil {
			return err
		}
	}
	return nil
}

// StaticStore serves the built-in deck; used when no database is
// configured.
type StaticStore struct {
	slides []Slide
}

func NewStaticStore() *StaticStore {
	return &StaticStore{slides: BuiltinDeck()}
}

func (s *StaticStore) List(_ context.Context) ([]Slide, error) {
	out := make([]Slide, len(s.slides))
	copy(out, s.slides)
	return out, nil
}

func (s *StaticStore) Get(_ context.Context, id int) (Slide, error) {
	for _, slide := range s.slides {
		if slide.ID == id {
			return slide, nil
		}
	}
	return Slide{}, shared.ErrNotFound
}
