package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/response"
)

// Materialize creates the room's FFE instance from a template or the default set.
// An existing instance is either a conflict or returned as-is, depending on req.Mode.
func (s *ffeInstanceServiceImpl) Materialize(ctx context.Context, roomID uuid.UUID, req *dto.MaterializeFFERequest) (*dto.MaterializeFFEResponse, error) {
	if req == nil {
		return nil, response.NewValidationError("Request body is required", "")
	}

	switch req.Mode {
	case dto.MaterializeFailIfExists, dto.MaterializeReturnExisting:
	default:
		return nil, response.NewValidationError("Invalid materialize mode",
			fmt.Sprintf("mode must be %s or %s", dto.MaterializeFailIfExists, dto.MaterializeReturnExisting))
	}

	templateRef := strings.TrimSpace(req.TemplateID)
	useDefault := strings.EqualFold(templateRef, dto.DefaultTemplateRef)
	var templateID uuid.UUID
	if !useDefault {
		id, err := uuid.Parse(templateRef)
		if err != nil {
			return nil, response.NewValidationError("Invalid template ID", "templateId must be a UUID or \"default\"")
		}
		templateID = id
	}

	release, err := s.locker.Acquire(ctx, lock.RoomKey(roomID))
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to lock room", err.Error())
	}
	defer release()

	var (
		created  bool
		room     *domain.Room
		instance *domain.RoomFFEInstance
	)

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Instances.FindByRoomID(ctx, roomID)
		if err == nil {
			if req.Mode == dto.MaterializeFailIfExists {
				return instanceExistsError(existing.ID)
			}
			instance = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewAppError(response.ErrCodeInternal, "Failed to check existing FFE instance", err.Error())
		}

		room, err = tx.Rooms.FindByID(ctx, roomID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFoundError("Room not found", "")
			}
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch room", err.Error())
		}

		var template *domain.FFETemplate
		if useDefault {
			template = getDefaultFFETemplate()
		} else {
			template, err = tx.Templates.FindTemplate(ctx, room.OrganizationID, templateID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFoundError("FFE template not found", "")
				}
				return response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE template", err.Error())
			}
		}

		plan, err := buildInstancePlan(room.ID, template, !useDefault)
		if err != nil {
			return err
		}

		if err := tx.Instances.Create(ctx, plan.instance); err != nil {
			return err
		}
		if err := tx.Instances.CreateSections(ctx, plan.sections); err != nil {
			return err
		}
		if err := tx.Items.CreateBatch(ctx, plan.items); err != nil {
			return err
		}

		instance = plan.instance
		created = true
		return nil
	})
	if err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another writer created the instance between our check and insert
			existing, findErr := s.store.Instances.FindByRoomID(ctx, roomID)
			if findErr != nil {
				return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch FFE instance", findErr.Error())
			}
			if req.Mode == dto.MaterializeFailIfExists {
				return nil, instanceExistsError(existing.ID)
			}
			instance = existing
			created = false
		} else {
			return nil, response.NewAppError(response.ErrCodeInternal, "Failed to materialize FFE instance", err.Error())
		}
	}

	tree, err := s.GetInstance(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if created {
		source := "template"
		if useDefault {
			source = "default"
		}
		if s.metrics != nil {
			s.metrics.IncrementInstanceMaterialized(source)
		}

		s.logger.Info("FFE instance materialized",
			zap.String("room_id", roomID.String()),
			zap.String("instance_id", instance.ID.String()),
			zap.String("source", source),
		)

		publishActivity(ctx, s.activity, s.logger, client.ActivityEvent{
			Type:           client.ActivityFFEInstanceCreated,
			OrganizationID: room.OrganizationID,
			RoomID:         roomID,
			ResourceType:   "FFE_INSTANCE",
			ResourceID:     instance.ID,
			Metadata: map[string]interface{}{
				"templateName": instance.TemplateName,
				"source":       source,
			},
		})
	}

	return &dto.MaterializeFFEResponse{
		Created:  created,
		Instance: tree,
	}, nil
}

func instanceExistsError(instanceID uuid.UUID) *response.AppError {
	return response.NewConflictError("Room already has an FFE instance", "").
		WithMeta("instanceId", instanceID.String())
}

type instancePlan struct {
	instance *domain.RoomFFEInstance
	sections []*domain.RoomFFESection
	items    []*domain.RoomFFEItem
}

// buildInstancePlan deep-copies template into new rows for roomID. The template is only read.
func buildInstancePlan(roomID uuid.UUID, template *domain.FFETemplate, keepTemplateRefs bool) (*instancePlan, error) {
	definitions := make(map[uuid.UUID]*domain.FFETemplateItem)
	for si := range template.Sections {
		for ii := range template.Sections[si].Items {
			item := &template.Sections[si].Items[ii]
			definitions[item.ID] = item
		}
	}

	linkedTo := make(map[uuid.UUID]bool)
	for si := range template.Sections {
		for _, item := range template.Sections[si].Items {
			for _, linkedID := range item.LinkedItemIDs {
				child, ok := definitions[linkedID]
				if !ok {
					return nil, response.NewValidationError("Template item links an unknown item",
						fmt.Sprintf("item %s links %s", item.ID, linkedID))
				}
				if linkedID == item.ID {
					return nil, response.NewValidationError("Template item links itself", item.ID.String())
				}
				if len(child.LinkedItemIDs) > 0 {
					return nil, response.NewValidationError("Sub-items cannot have sub-items of their own",
						fmt.Sprintf("item %s links %s which has linked items", item.ID, linkedID))
				}
				linkedTo[linkedID] = true
			}
		}
	}

	instance := &domain.RoomFFEInstance{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		RoomID:       roomID,
		TemplateName: template.Name,
	}
	if keepTemplateRefs {
		templateID := template.ID
		instance.TemplateID = &templateID
	}

	plan := &instancePlan{instance: instance}
	for si, templateSection := range template.Sections {
		section := &domain.RoomFFESection{
			BaseModel:    domain.BaseModel{ID: uuid.New()},
			InstanceID:   instance.ID,
			Name:         templateSection.Name,
			Description:  templateSection.Description,
			DisplayOrder: si,
		}
		plan.sections = append(plan.sections, section)

		order := 0
		for ii := range templateSection.Items {
			definition := &templateSection.Items[ii]
			if linkedTo[definition.ID] {
				continue
			}

			rows := newItemRows(instance.ID, section.ID, definition, order, keepTemplateRefs)
			for _, row := range rows {
				plan.items = append(plan.items, row)
				for linkOrder, linkedID := range definition.LinkedItemIDs {
					plan.items = append(plan.items, newSubItemRow(row, definitions[linkedID], linkOrder, keepTemplateRefs))
				}
			}
			order++
		}
	}

	visibility := ResolveVisibility(plan.items)
	for _, item := range plan.items {
		item.Visible = visibility[item.ID]
	}

	return plan, nil
}

// newItemRows expands one top-level definition into its rows.
// PER_SUB_UNIT definitions produce one row per sub-unit sharing a quantity group.
func newItemRows(instanceID, sectionID uuid.UUID, definition *domain.FFETemplateItem, order int, keepTemplateRefs bool) []*domain.RoomFFEItem {
	quantity := definition.DefaultQuantity
	if quantity < 1 {
		quantity = 1
	}

	base := domain.RoomFFEItem{
		InstanceID:       instanceID,
		SectionID:        sectionID,
		Name:             definition.Name,
		Description:      definition.Description,
		Category:         definition.Category,
		DisplayOrder:     order,
		Status:           domain.ItemStatusNotStarted,
		Options:          copyOptions(definition.Options),
		Quantity:         quantity,
		QuantityMode:     definition.QuantityMode,
		SubUnitLabel:     definition.SubUnitLabel,
		VisibilityMode:   definition.VisibilityMode,
		VisibilityOption: definition.VisibilityOption,
		Version:          1,
	}
	if base.QuantityMode == "" {
		base.QuantityMode = domain.QuantityModeFixed
	}
	if base.VisibilityMode == "" {
		base.VisibilityMode = domain.VisibilityAlways
	}
	if keepTemplateRefs {
		templateItemID := definition.ID
		base.TemplateItemID = &templateItemID
	}

	if base.QuantityMode != domain.QuantityModePerSubUnit {
		row := base
		row.ID = uuid.New()
		return []*domain.RoomFFEItem{&row}
	}

	groupID := uuid.New()
	rows := make([]*domain.RoomFFEItem, 0, quantity)
	for i := 1; i <= quantity; i++ {
		row := base
		row.ID = uuid.New()
		row.Options = copyOptions(definition.Options)
		row.QuantityGroupID = &groupID
		row.SubUnitIndex = i
		rows = append(rows, &row)
	}
	return rows
}

// newSubItemRow clones a linked definition underneath parent with fresh state
func newSubItemRow(parent *domain.RoomFFEItem, definition *domain.FFETemplateItem, order int, keepTemplateRefs bool) *domain.RoomFFEItem {
	parentID := parent.ID
	row := &domain.RoomFFEItem{
		BaseModel:        domain.BaseModel{ID: uuid.New()},
		InstanceID:       parent.InstanceID,
		SectionID:        parent.SectionID,
		ParentItemID:     &parentID,
		Name:             definition.Name,
		Description:      definition.Description,
		Category:         definition.Category,
		DisplayOrder:     order,
		Status:           domain.ItemStatusNotStarted,
		Options:          copyOptions(definition.Options),
		Quantity:         1,
		QuantityMode:     domain.QuantityModeFixed,
		VisibilityMode:   definition.VisibilityMode,
		VisibilityOption: definition.VisibilityOption,
		Visible:          false,
		Version:          1,
	}
	if definition.DefaultQuantity > 1 {
		row.Quantity = definition.DefaultQuantity
	}
	if row.VisibilityMode == "" {
		row.VisibilityMode = domain.VisibilityAlways
	}
	if keepTemplateRefs {
		templateItemID := definition.ID
		row.TemplateItemID = &templateItemID
	}
	return row
}

func copyOptions(options datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if options == nil {
		return nil
	}
	return append(datatypes.JSONSlice[string]{}, options...)
}
