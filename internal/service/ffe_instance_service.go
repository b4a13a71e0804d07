package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// FFEInstanceService defines the interface for room FFE instance business logic
type FFEInstanceService interface {
	Materialize(ctx context.Context, roomID uuid.UUID, req *dto.MaterializeFFERequest) (*dto.MaterializeFFEResponse, error)
	GetInstance(ctx context.Context, roomID uuid.UUID) (*dto.FFEInstanceResponse, error)
}

// ffeInstanceServiceImpl is the implementation of FFEInstanceService
type ffeInstanceServiceImpl struct {
	store    *repository.Store
	locker   lock.Locker
	activity client.ActivityClient
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewFFEInstanceService creates a new instance of FFEInstanceService
func NewFFEInstanceService(
	store *repository.Store,
	locker lock.Locker,
	activity client.ActivityClient,
	m *metrics.Metrics,
	logger *zap.Logger,
) FFEInstanceService {
	if activity == nil {
		activity = client.NewNoOpActivityClient()
	}
	return &ffeInstanceServiceImpl{
		store:    store,
		locker:   locker,
		activity: activity,
		metrics:  m,
		logger:   logger,
	}
}

// GetInstance returns the room's FFE tree. Visibility is recomputed on every read.
func (s *ffeInstanceServiceImpl) GetInstance(ctx context.Context, roomID uuid.UUID) (*dto.FFEInstanceResponse, error) {
	instance, err := s.store.Instances.FindTreeByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("FFE instance not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE instance", err.Error())
	}

	var items []*domain.RoomFFEItem
	for si := range instance.Sections {
		for ii := range instance.Sections[si].Items {
			items = append(items, &instance.Sections[si].Items[ii])
		}
	}

	return toFFEInstanceResponse(instance, ResolveVisibility(items)), nil
}

// toFFEInstanceResponse nests sub-items under their parents
func toFFEInstanceResponse(instance *domain.RoomFFEInstance, visibility map[uuid.UUID]bool) *dto.FFEInstanceResponse {
	resp := &dto.FFEInstanceResponse{
		InstanceID:   instance.ID,
		RoomID:       instance.RoomID,
		TemplateID:   instance.TemplateID,
		TemplateName: instance.TemplateName,
		Sections:     make([]dto.FFESectionResponse, 0, len(instance.Sections)),
		CreatedAt:    instance.CreatedAt,
		UpdatedAt:    instance.UpdatedAt,
	}

	for _, section := range instance.Sections {
		children := make(map[uuid.UUID][]dto.FFEItemResponse)
		for i := range section.Items {
			item := &section.Items[i]
			if item.ParentItemID != nil {
				children[*item.ParentItemID] = append(children[*item.ParentItemID], toFFEItemResponse(item, visibility[item.ID]))
			}
		}

		sectionResp := dto.FFESectionResponse{
			SectionID:    section.ID,
			Name:         section.Name,
			Description:  section.Description,
			DisplayOrder: section.DisplayOrder,
			Items:        make([]dto.FFEItemResponse, 0, len(section.Items)),
		}
		for i := range section.Items {
			item := &section.Items[i]
			if item.ParentItemID != nil {
				continue
			}
			itemResp := toFFEItemResponse(item, visibility[item.ID])
			itemResp.SubItems = children[item.ID]
			sectionResp.Items = append(sectionResp.Items, itemResp)
		}

		resp.Sections = append(resp.Sections, sectionResp)
	}

	return resp
}

func toFFEItemResponse(item *domain.RoomFFEItem, visible bool) dto.FFEItemResponse {
	options := []string(item.Options)
	if options == nil {
		options = []string{}
	}
	return dto.FFEItemResponse{
		ItemID:           item.ID,
		SectionID:        item.SectionID,
		TemplateItemID:   item.TemplateItemID,
		ParentItemID:     item.ParentItemID,
		Name:             item.Name,
		Description:      item.Description,
		Category:         item.Category,
		DisplayOrder:     item.DisplayOrder,
		Status:           string(item.Status),
		LegacyStatus:     item.Status.IsLegacy(),
		Note:             item.Note,
		SelectedOption:   item.SelectedOption,
		Options:          options,
		Quantity:         item.Quantity,
		QuantityMode:     string(item.QuantityMode),
		QuantityGroupID:  item.QuantityGroupID,
		SubUnitIndex:     item.SubUnitIndex,
		SubUnitLabel:     item.SubUnitLabel,
		VisibilityMode:   string(item.VisibilityMode),
		VisibilityOption: item.VisibilityOption,
		Visible:          visible,
		Version:          item.Version,
		UpdatedAt:        item.UpdatedAt,
	}
}
