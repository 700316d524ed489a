// Command ifj-migrate imports Intercom for Jira data from a DC/Server backup
// into a Jira Cloud instance.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolsplus/ifj-migrate/internal/config"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/telemetry"
	"github.com/toolsplus/ifj-migrate/internal/ui"
)

var (
	configFile   string
	eventLogFile string
	verboseFlag  bool // Enable verbose/debug output
	quietFlag    bool // Suppress progress output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// flagKeys maps config keys to the flags that set them.
var flagKeys = map[string]string{
	config.KeyInstance:        "instance",
	config.KeyUser:            "user",
	config.KeyPassword:        "password",
	config.KeyEntitiesXMLFile: "entitiesXmlFile",
	config.KeyRetryMax:        "retries",
	config.KeyHTTPRateLimit:   "rate-limit",
	config.KeyReport:          "report",
}

var rootCmd = &cobra.Command{
	Use:   "ifj-migrate",
	Short: "Imports Intercom for Jira data to a Cloud instance from a given DC/Server backup",
	Long: `ifj-migrate reads the Intercom for Jira app data (conversation links and
connection configurations) from the entities.xml file of a Jira DC/Server
backup and imports it into a Jira Cloud instance.

Issues and projects must already have been migrated; they are matched by key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		debug.SetOutput(cmd.OutOrStdout())
		debug.SetEventLog(eventLogFile)
		ui.ConfigureColor()

		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		return telemetry.Init(rootCtx, "ifj-migrate", Version)
	},
	RunE: runMigration,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&eventLogFile, "event-log", "", "Append machine readable run events to this file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output (errors only)")

	addMigrationFlags(rootCmd)
	addMigrationFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// shutdownTelemetry flushes spans and metrics; tests replace it.
var shutdownTelemetry = telemetry.Shutdown

// executeRoot runs the command tree, then flushes telemetry and releases
// rootCtx whether or not the command failed.
func executeRoot() error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(ctx)
		if rootCancel != nil {
			rootCancel()
		}
	}()
	return rootCmd.Execute()
}

func main() {
	if err := executeRoot(); err != nil {
		FatalError("%v", err)
	}
}
