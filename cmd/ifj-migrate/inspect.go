package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolsplus/ifj-migrate/internal/backup"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/migration"
	"github.com/toolsplus/ifj-migrate/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read and validate the app data in a backup without contacting Jira",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.EntitiesXMLFile == "" {
			return fmt.Errorf("entities xml file is required (--entitiesXmlFile)")
		}

		data, err := backup.ExtractFile(rootCtx, cfg.EntitiesXMLFile)
		if err != nil {
			return err
		}
		migration.PrintSummary(debug.NormalWriter(), data.Summary())

		payloads, err := migration.ParsePayloads(data)
		if err != nil {
			return fmt.Errorf("backup contains invalid app data: %w", err)
		}
		debug.PrintNormal("%s %d conversation link and %d connection configuration properties are valid\n",
			ui.RenderPassIcon(), len(payloads.ConversationLinks), len(payloads.ConnectionConfigurations))
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringP("entitiesXmlFile", "e", "", "Location of the entities.xml file from your DC/Server backup")
	rootCmd.AddCommand(inspectCmd)
}
