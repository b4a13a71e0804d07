package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/config"
	"room-ffe-api/internal/database"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/service"
)

type options struct {
	configPath string
	verbose    bool
}

// newRootCmd builds the command tree; tests execute it directly.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "maintenance",
		Short: "Room FFE database maintenance",
		Long: `Maintenance tasks for the room FFE database.

Run "migrate" after a deploy and "cleanup-stages" to merge duplicate
workflow stages left behind by older releases.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to the YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newCleanupStagesCmd(opts))
	return root
}

func newMigrateCmd(opts *options) *cobra.Command {
	var skipIndex bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate tables and install the stage unique index",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, logger, err := open(opts)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.SafeAutoMigrate(db, logger); err != nil {
				return err
			}
			if skipIndex {
				return nil
			}
			if err := database.EnsureStageUniqueIndex(db); err != nil {
				return fmt.Errorf("%w (run cleanup-stages first)", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s in place\n", database.StageUniqueIndexName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "Only migrate tables")
	return cmd
}

func newCleanupStagesCmd(opts *options) *cobra.Command {
	var (
		orgID  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-stages",
		Short: "Merge duplicate stages into one survivor per room and type",
		Long: `Finds rooms holding more than one stage of the same type and merges each
group into a single survivor. Groups with more than one stage in use are
reported as conflicts and left untouched. The JSON report goes to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &dto.StageCleanupRequest{DryRun: dryRun}
			if orgID != "" {
				id, err := uuid.Parse(orgID)
				if err != nil {
					return fmt.Errorf("invalid --org: %w", err)
				}
				req.OrganizationID = &id
			}

			db, logger, err := open(opts)
			if err != nil {
				return err
			}
			defer database.Close(db)

			cleanup := service.NewStageCleanupService(repository.NewStore(db), lock.NewLocalLocker(), nil, nil, logger)
			report, err := cleanup.RunCleanup(context.Background(), req)
			if report != nil {
				// groups merged before a failure are already committed
				if werr := writeReport(cmd.OutOrStdout(), report); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Limit the cleanup to one organization ID")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the planned merges without writing")
	return cmd
}

func open(opts *options) (*gorm.DB, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	return db, logger, nil
}

func writeReport(w io.Writer, report *dto.StageCleanupReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
