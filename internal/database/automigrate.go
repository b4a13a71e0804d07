package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// modelInfo holds information about a domain model and its table name
type modelInfo struct {
	model     interface{}
	tableName string
}

// models lists every domain model in dependency order
func models() []modelInfo {
	return []modelInfo{
		{&domain.Room{}, "rooms"},
		{&domain.Stage{}, "stages"},
		{&domain.DesignSection{}, "design_sections"},
		{&domain.FFETemplate{}, "ffe_templates"},
		{&domain.FFETemplateSection{}, "ffe_template_sections"},
		{&domain.FFETemplateItem{}, "ffe_template_items"},
		{&domain.RoomFFEInstance{}, "room_ffe_instances"},
		{&domain.RoomFFESection{}, "room_ffe_sections"},
		{&domain.RoomFFEItem{}, "room_ffe_items"},
	}
}

// AutoMigrate runs GORM auto-migration for all domain models
func AutoMigrate(db *gorm.DB) error {
	all := models()
	list := make([]interface{}, len(all))
	for i, m := range all {
		list[i] = m.model
	}

	if err := db.AutoMigrate(list...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}

	return nil
}

// SafeAutoMigrate migrates table by table and logs whether each table existed
func SafeAutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	migrator := db.Migrator()
	all := models()

	logger.Info("Starting safe auto-migration",
		zap.Int("total_models", len(all)),
	)

	for _, m := range all {
		tableExists := migrator.HasTable(m.model)

		if err := db.AutoMigrate(m.model); err != nil {
			logger.Error("Failed to migrate table",
				zap.String("table", m.tableName),
				zap.Bool("table_existed", tableExists),
				zap.Error(err),
			)
			return fmt.Errorf("failed to migrate table %s: %w", m.tableName, err)
		}

		logger.Debug("Successfully migrated table",
			zap.String("table", m.tableName),
			zap.Bool("was_existing", tableExists),
		)
	}

	logger.Info("Safe auto-migration completed successfully",
		zap.Int("tables_migrated", len(all)),
	)

	return nil
}

// StageUniqueIndexName is the partial unique index guarding one active stage per room and type
const StageUniqueIndexName = "uq_stages_room_type_active"

// EnsureStageUniqueIndex installs the partial unique index over active stages.
// It refuses while duplicates exist so historical data never blocks startup;
// run the stage cleanup first.
//
// The index keys on the stored type, not the canonical one: a legacy DESIGN row and a
// DESIGN_CONCEPT row in the same room do not collide here. The stage cleanup groups by
// canonical type and folds that pair into one stage.
func EnsureStageUniqueIndex(db *gorm.DB) error {
	var duplicates int64
	err := db.Raw(`SELECT COUNT(*) FROM (
		SELECT room_id, type FROM stages
		WHERE deleted_at IS NULL
		GROUP BY room_id, type
		HAVING COUNT(*) > 1
	) d`).Scan(&duplicates).Error
	if err != nil {
		return fmt.Errorf("failed to check stage duplicates: %w", err)
	}
	if duplicates > 0 {
		return fmt.Errorf("cannot create %s: %d room/type groups still hold duplicate stages", StageUniqueIndexName, duplicates)
	}

	stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON stages (room_id, type) WHERE deleted_at IS NULL", StageUniqueIndexName)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", StageUniqueIndexName, err)
	}
	return nil
}
