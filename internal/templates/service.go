package templates

import (
	"context"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// Service handles meal template business logic.
type Service struct {
	storage storage.TemplatesStorage
}

// NewService creates a new templates service.
func NewService(storage storage.TemplatesStorage) *Service {
	return &Service{storage: storage}
}

func (s *Service) Create(ctx context.Context, req CreateTemplateRequest) (*TemplateDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.storage.CreateMealTemplate(ctx, storage.MealTemplateCreate{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		CompatibleSlots: dedupeSlots(req.CompatibleSlots),
		LocationType:    req.LocationType,
		WeeklyLimit:     req.WeeklyLimit,
	})
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*TemplateDTO, error) {
	t, err := s.storage.GetMealTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

func (s *Service) List(ctx context.Context) ([]TemplateDTO, error) {
	return toDTOs(s.storage.ListMealTemplates(ctx))
}

// ListByLocation returns templates usable at location ("any" matches all).
func (s *Service) ListByLocation(ctx context.Context, location storage.LocationType) ([]TemplateDTO, error) {
	if !location.Valid() {
		return nil, storage.Invalid("location_type", "unknown location %q", location)
	}
	return toDTOs(s.storage.ListMealTemplatesByLocation(ctx, location))
}

func (s *Service) ListBySlot(ctx context.Context, slot storage.SlotType) ([]TemplateDTO, error) {
	if !slot.Valid() {
		return nil, storage.Invalid("slot_type", "unknown slot %q", slot)
	}
	return toDTOs(s.storage.ListMealTemplatesBySlot(ctx, slot))
}

// Search matches name or description, case-insensitively.
func (s *Service) Search(ctx context.Context, query string) ([]TemplateDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	return toDTOs(s.storage.SearchMealTemplates(ctx, query))
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateTemplateRequest) (*TemplateDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	upd := storage.MealTemplateUpdate{
		Description:  req.Description,
		LocationType: req.LocationType,
		WeeklyLimit:  req.WeeklyLimit,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}
	if req.CompatibleSlots != nil {
		upd.CompatibleSlots = dedupeSlots(req.CompatibleSlots)
	}

	t, err := s.storage.UpdateMealTemplate(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

// Delete removes the template and its options. It fails with
// storage.ErrForeignKey while any option still has entries.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.storage.DeleteMealTemplate(ctx, id)
}

// dedupeSlots keeps the first occurrence of every slot.
func dedupeSlots(slots []storage.SlotType) []storage.SlotType {
	seen := make(map[storage.SlotType]bool, len(slots))
	out := make([]storage.SlotType, 0, len(slots))
	for _, s := range slots {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func toDTO(t storage.MealTemplate) *TemplateDTO {
	return &TemplateDTO{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		CompatibleSlots: t.CompatibleSlots,
		LocationType:    t.LocationType,
		WeeklyLimit:     t.WeeklyLimit,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toDTOs(list []storage.MealTemplate, err error) ([]TemplateDTO, error) {
	if err != nil {
		return nil, err
	}
	out := make([]TemplateDTO, len(list))
	for i, t := range list {
		out[i] = *toDTO(t)
	}
	return out, nil
}
