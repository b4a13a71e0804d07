package service

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"room-ffe-api/internal/domain"
)

const defaultFFETemplateName = "Default FFE Set"

type defaultItemSpec struct {
	key              string
	name             string
	category         string
	quantityMode     domain.QuantityMode
	defaultQuantity  int
	subUnitLabel     string
	options          []string
	visibilityMode   domain.VisibilityMode
	visibilityOption string
	linked           []string
}

type defaultSectionSpec struct {
	name        string
	description string
	items       []defaultItemSpec
}

var defaultFFESections = []defaultSectionSpec{
	{
		name:        "Plumbing Fixtures",
		description: "Fixtures connected to supply or drain lines",
		items: []defaultItemSpec{
			{key: "vanity", name: "Vanity", category: "Casework", options: []string{"Standard", "Custom"}, linked: []string{"vanity-cabinet", "vanity-handles", "vanity-counter"}},
			{key: "vanity-cabinet", name: "Cabinet", category: "Casework", visibilityMode: domain.VisibilityParentOption, visibilityOption: "Custom"},
			{key: "vanity-handles", name: "Handles", category: "Hardware", visibilityMode: domain.VisibilityParentOption, visibilityOption: "Custom"},
			{key: "vanity-counter", name: "Counter", category: "Surfaces", visibilityMode: domain.VisibilityParentOption, visibilityOption: "Custom"},
			{key: "sink", name: "Sink", category: "Plumbing", quantityMode: domain.QuantityModePerSubUnit, subUnitLabel: "Sink", options: []string{"Undermount", "Vessel", "Integrated"}, linked: []string{"faucet"}},
			{key: "faucet", name: "Faucet", category: "Plumbing"},
			{key: "toilet", name: "Toilet", category: "Plumbing"},
			{key: "shower", name: "Shower System", category: "Plumbing", options: []string{"Exposed", "Concealed"}},
		},
	},
	{
		name:        "Accessories",
		description: "Mounted accessories and hardware",
		items: []defaultItemSpec{
			{key: "towel-bar", name: "Towel Bar", category: "Accessories", quantityMode: domain.QuantityModePerSubUnit, subUnitLabel: "Sink"},
			{key: "mirror", name: "Mirror", category: "Accessories", options: []string{"Framed", "Frameless", "Medicine Cabinet"}},
			{key: "robe-hook", name: "Robe Hook", category: "Accessories", defaultQuantity: 2},
		},
	},
	{
		name:        "Lighting",
		description: "Decorative and functional light fixtures",
		items: []defaultItemSpec{
			{key: "ceiling-light", name: "Ceiling Light", category: "Lighting"},
			{key: "sconce", name: "Wall Sconce", category: "Lighting", defaultQuantity: 2},
		},
	},
	{
		name:        "Finishes",
		description: "Surface materials",
		items: []defaultItemSpec{
			{key: "floor-tile", name: "Floor Tile", category: "Finishes"},
			{key: "wall-tile", name: "Wall Tile", category: "Finishes"},
			{key: "paint", name: "Paint", category: "Finishes"},
		},
	},
}

// getDefaultFFETemplate builds the built-in FFE set used when a room asks for "default".
// Every call returns a fresh tree with its own IDs.
func getDefaultFFETemplate() *domain.FFETemplate {
	template := &domain.FFETemplate{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      defaultFFETemplateName,
		IsActive:  true,
	}

	ids := make(map[string]uuid.UUID)
	for _, section := range defaultFFESections {
		for _, item := range section.items {
			ids[item.key] = uuid.New()
		}
	}

	for sectionOrder, sectionSpec := range defaultFFESections {
		section := domain.FFETemplateSection{
			BaseModel:    domain.BaseModel{ID: uuid.New()},
			TemplateID:   template.ID,
			Name:         sectionSpec.name,
			Description:  sectionSpec.description,
			DisplayOrder: sectionOrder,
		}

		for itemOrder, spec := range sectionSpec.items {
			item := domain.FFETemplateItem{
				BaseModel:        domain.BaseModel{ID: ids[spec.key]},
				SectionID:        section.ID,
				Name:             spec.name,
				Category:         spec.category,
				DisplayOrder:     itemOrder,
				QuantityMode:     spec.quantityMode,
				DefaultQuantity:  spec.defaultQuantity,
				SubUnitLabel:     spec.subUnitLabel,
				Options:          datatypes.JSONSlice[string](append([]string(nil), spec.options...)),
				VisibilityMode:   spec.visibilityMode,
				VisibilityOption: spec.visibilityOption,
			}
			if item.QuantityMode == "" {
				item.QuantityMode = domain.QuantityModeFixed
			}
			if item.DefaultQuantity < 1 {
				item.DefaultQuantity = 1
			}
			if item.VisibilityMode == "" {
				item.VisibilityMode = domain.VisibilityAlways
			}
			for _, key := range spec.linked {
				item.LinkedItemIDs = append(item.LinkedItemIDs, ids[key])
			}
			section.Items = append(section.Items, item)
		}

		template.Sections = append(template.Sections, section)
	}

	return template
}
