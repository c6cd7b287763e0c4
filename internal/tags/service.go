package tags

import (
	"context"
	"errors"
	"strings"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// Service handles tag business logic.
type Service struct {
	storage storage.TagsStorage
}

// NewService creates a new tags service.
func NewService(storage storage.TagsStorage) *Service {
	return &Service{storage: storage}
}

// Create fails with storage.ErrConflict when the name is taken.
func (s *Service) Create(ctx context.Context, req CreateTagRequest) (*TagDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.storage.CreateTag(ctx, storage.TagCreate{
		Name:             req.Name,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Category:         req.Category,
		WeeklySuggestion: req.WeeklySuggestion,
		ParentTagID:      req.ParentTagID,
	})
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*TagDTO, error) {
	t, err := s.storage.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*TagDTO, error) {
	t, err := s.storage.GetTagByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

func (s *Service) List(ctx context.Context) ([]TagDTO, error) {
	return toDTOs(s.storage.ListTags(ctx))
}

func (s *Service) ListByCategory(ctx context.Context, category storage.TagCategory) ([]TagDTO, error) {
	if !category.Valid() {
		return nil, storage.Invalid("category", "unknown tag category %q", category)
	}
	return toDTOs(s.storage.ListTagsByCategory(ctx, category))
}

func (s *Service) ListChildren(ctx context.Context, parentID int64) ([]TagDTO, error) {
	return toDTOs(s.storage.ListTagChildren(ctx, parentID))
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateTagRequest) (*TagDTO, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if parentID, ok := req.ParentTagID.Value(); ok {
		if err := s.checkNoCycle(ctx, id, parentID); err != nil {
			return nil, err
		}
	}

	upd := storage.TagUpdate{
		Category:         req.Category,
		WeeklySuggestion: req.WeeklySuggestion,
		ParentTagID:      req.ParentTagID,
	}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		upd.DisplayName = &name
	}

	t, err := s.storage.UpdateTag(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	return toDTO(t), nil
}

// Delete removes the tag; children lose their parent and options lose the tag.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.storage.DeleteTag(ctx, id)
}

// checkNoCycle walks up from parentID and rejects the update if it reaches id.
// A parent that does not exist is left for the store to report.
func (s *Service) checkNoCycle(ctx context.Context, id, parentID int64) error {
	if parentID == id {
		return storage.Invalid("parent_tag_id", "a tag cannot be its own parent")
	}

	seen := map[int64]bool{id: true}
	cur := parentID
	for {
		if seen[cur] {
			return storage.Invalid("parent_tag_id", "tag %d is a descendant of tag %d", parentID, id)
		}
		seen[cur] = true

		t, err := s.storage.GetTag(ctx, cur)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.ParentTagID == nil {
			return nil
		}
		cur = *t.ParentTagID
	}
}

func toDTO(t storage.Tag) *TagDTO {
	return &TagDTO{
		ID:               t.ID,
		Name:             t.Name,
		DisplayName:      t.DisplayName,
		Category:         t.Category,
		WeeklySuggestion: t.WeeklySuggestion,
		ParentTagID:      t.ParentTagID,
		CreatedAt:        t.CreatedAt,
	}
}

func toDTOs(list []storage.Tag, err error) ([]TagDTO, error) {
	if err != nil {
		return nil, err
	}
	out := make([]TagDTO, len(list))
	for i, t := range list {
		out[i] = *toDTO(t)
	}
	return out, nil
}
