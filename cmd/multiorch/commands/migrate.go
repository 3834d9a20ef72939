package commands

import (
	"fmt"

	"github.com/biodoia/multiorch/pkg/models"
	"github.com/spf13/cobra"
)

// MigrateCmd rappresenta il comando migrate
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long:  `Create, inspect or reset the conversation and run-log schema.`,
	Example: `  # Run migrations
  multiorch migrate up

  # Reset database (drop and recreate)
  multiorch migrate reset --confirm`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run migrations",
	Long:  `Bring the schema up to date with GORM AutoMigrate.`,
	RunE:  runMigrateUp,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset database",
	Long:  `Drop all tables and recreate the schema. This will delete all conversations.`,
	RunE:  runMigrateReset,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

var migrateConfirm bool

// schemaTables in ordine di dipendenza: i figli prima dei genitori
var schemaTables = []struct {
	name  string
	model interface{}
}{
	{"orchestration_runs", &models.OrchestrationRun{}},
	{"messages", &models.Message{}},
	{"conversations", &models.Conversation{}},
}

func init() {
	migrateResetCmd.Flags().BoolVar(&migrateConfirm, "confirm", false, "Confirm reset action")

	MigrateCmd.AddCommand(migrateUpCmd)
	MigrateCmd.AddCommand(migrateResetCmd)
	MigrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Running database migrations...")

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✓ Migrations completed successfully")
	return nil
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	if !migrateConfirm {
		return fmt.Errorf("reset requires --confirm flag to proceed")
	}

	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("⚠️  Resetting database - ALL DATA WILL BE LOST!")

	for _, table := range schemaTables {
		if err := db.Migrator().DropTable(table.model); err != nil {
			fmt.Printf("Warning: Failed to drop table: %v\n", err)
		}
	}

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}

	fmt.Println("✓ Database reset successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Database Migration Status")
	fmt.Println("=========================")
	fmt.Println()

	for _, table := range schemaTables {
		exists := db.Migrator().HasTable(table.model)
		status := "✗ Not created"
		var count int64

		if exists {
			db.Model(table.model).Count(&count)
			status = fmt.Sprintf("✓ Created (%d records)", count)
		}

		fmt.Printf("%-20s %s\n", table.name+":", status)
	}

	return nil
}
