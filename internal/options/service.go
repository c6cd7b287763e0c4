package options

import (
	"context"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// Storage is the part of the store the options service needs. Create with
// tags runs in a transaction, so the full Store is required.
type Storage interface {
	storage.OptionsStorage
	InTx(ctx context.Context, lock storage.EntryLock, fn func(ctx context.Context, tx storage.Store) error) error
}

// Service handles meal option business logic.
type Service struct {
	storage Storage
}

// NewService creates a new options service.
func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// Create adds an option to a template and attaches its tags in one
// transaction. A missing template or an unknown tag id fails with
// storage.ErrForeignKey.
func (s *Service) Create(ctx context.Context, req CreateOptionRequest) (*OptionDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	in := storage.MealOptionCreate{
		TemplateID:       req.TemplateID,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		NutritionalNotes: req.NutritionalNotes,
	}
	tagIDs := dedupeIDs(req.TagIDs)

	var out *OptionDTO
	err := s.storage.InTx(ctx, storage.EntryLock{}, func(ctx context.Context, tx storage.Store) error {
		o, err := tx.CreateMealOption(ctx, in)
		if err != nil {
			return err
		}
		if len(tagIDs) > 0 {
			if err := tx.SetOptionTags(ctx, o.ID, tagIDs); err != nil {
				return err
			}
		}
		withTags, err := tx.GetMealOptionWithTags(ctx, o.ID)
		if err != nil {
			return err
		}
		out = withTagsDTO(withTags)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*OptionDTO, error) {
	o, err := s.storage.GetMealOption(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(o), nil
}

func (s *Service) GetWithTags(ctx context.Context, id int64) (*OptionDTO, error) {
	o, err := s.storage.GetMealOptionWithTags(ctx, id)
	if err != nil {
		return nil, err
	}
	return withTagsDTO(o), nil
}

func (s *Service) List(ctx context.Context) ([]OptionDTO, error) {
	return toDTOs(s.storage.ListMealOptions(ctx))
}

func (s *Service) ListByTemplate(ctx context.Context, templateID int64) ([]OptionDTO, error) {
	return toDTOs(s.storage.ListMealOptionsByTemplate(ctx, templateID))
}

// ListByTemplateWithTags is ListByTemplate with the tag ids of every option.
func (s *Service) ListByTemplateWithTags(ctx context.Context, templateID int64) ([]OptionDTO, error) {
	list, err := s.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		ids, err := s.storage.GetOptionTagIDs(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].TagIDs = ids
	}
	return list, nil
}

// Search matches name, description or nutritional notes.
func (s *Service) Search(ctx context.Context, query string) ([]OptionDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	return toDTOs(s.storage.SearchMealOptions(ctx, query))
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateOptionRequest) (*OptionDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	upd := storage.MealOptionUpdate{
		Description:      req.Description,
		NutritionalNotes: req.NutritionalNotes,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}

	o, err := s.storage.UpdateMealOption(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	return toDTO(o), nil
}

// Delete fails with storage.ErrForeignKey while entries reference the option.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.storage.DeleteMealOption(ctx, id)
}

// AddTags attaches tags; ids already attached are ignored.
func (s *Service) AddTags(ctx context.Context, id int64, tagIDs []int64) ([]int64, error) {
	if err := validateTagIDs(tagIDs); err != nil {
		return nil, err
	}
	if err := s.storage.AddOptionTags(ctx, id, dedupeIDs(tagIDs)); err != nil {
		return nil, err
	}
	return s.storage.GetOptionTagIDs(ctx, id)
}

func (s *Service) RemoveTags(ctx context.Context, id int64, tagIDs []int64) ([]int64, error) {
	if err := validateTagIDs(tagIDs); err != nil {
		return nil, err
	}
	if err := s.storage.RemoveOptionTags(ctx, id, dedupeIDs(tagIDs)); err != nil {
		return nil, err
	}
	return s.storage.GetOptionTagIDs(ctx, id)
}

// SetTags replaces the tag set. An empty list detaches every tag.
func (s *Service) SetTags(ctx context.Context, id int64, tagIDs []int64) ([]int64, error) {
	if err := validateTagIDs(tagIDs); err != nil {
		return nil, err
	}
	if err := s.storage.SetOptionTags(ctx, id, dedupeIDs(tagIDs)); err != nil {
		return nil, err
	}
	return s.storage.GetOptionTagIDs(ctx, id)
}

func toDTO(o storage.MealOption) *OptionDTO {
	return &OptionDTO{
		ID:               o.ID,
		TemplateID:       o.TemplateID,
		Name:             o.Name,
		Description:      o.Description,
		NutritionalNotes: o.NutritionalNotes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func withTagsDTO(o storage.MealOptionWithTags) *OptionDTO {
	dto := toDTO(o.MealOption)
	dto.TagIDs = o.TagIDs
	return dto
}

func toDTOs(list []storage.MealOption, err error) ([]OptionDTO, error) {
	if err != nil {
		return nil, err
	}
	out := make([]OptionDTO, len(list))
	for i, o := range list {
		out[i] = *toDTO(o)
	}
	return out, nil
}
