package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/toolsplus/ifj-migrate/internal/config"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/jira"
	"github.com/toolsplus/ifj-migrate/internal/migration"
	"github.com/toolsplus/ifj-migrate/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the migration (default command)",
	Example: `  ifj-migrate run -i https://acme.atlassian.net -u admin@acme.com -e my-backup/entities.xml
  IFJ_PASSWORD=<api-token> ifj-migrate -i https://acme.atlassian.net -u admin@acme.com -e entities.xml --report report.yaml`,
	Args: cobra.NoArgs,
	RunE: runMigration,
}

func addMigrationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("instance", "i", "", "Jira Cloud instance URL (https://???.atlassian.net) you would like to migrate data to")
	f.StringP("user", "u", "", "Atlassian admin user email address")
	f.StringP("password", "p", "", "Atlassian API token for the admin user (https://id.atlassian.com/manage-profile/security/api-tokens)")
	f.StringP("entitiesXmlFile", "e", "", "Location of the entities.xml file from your DC/Server backup, e.g. my-backup/entities.xml")
	f.Int("retries", jira.DefaultMaxRetries, "Retries per request on network errors, 429 and 5xx responses")
	f.Float64("rate-limit", 0, "Maximum requests per second (0 = unlimited)")
	f.String("report", "", "Write a YAML run report to this file")
}

// loadConfig resolves flags, environment and config file for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return nil, err
	}
	return config.Load(v, configFile)
}

func runMigration(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		token, err := ui.ReadSecret(os.Stdin, cmd.ErrOrStderr(), "API token: ")
		if err != nil {
			return err
		}
		cfg.Password = token
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	debug.Logf("config: %+v\n", cfg.Redacted())

	client := jira.NewClient(cfg.Instance, cfg.User, cfg.Password).
		WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}).
		WithRateLimit(cfg.HTTP.RateLimit)
	client.MaxRetries = cfg.Retry.Max
	client.RetryInterval = cfg.Retry.InitialInterval

	m := &migration.Migrator{API: client, Out: debug.NormalWriter()}
	report, runErr := m.Run(rootCtx, cfg.Instance, cfg.EntitiesXMLFile)

	if cfg.Report != "" {
		if err := report.WriteFile(cfg.Report); err != nil {
			if runErr == nil {
				return err
			}
			WarnError("%v", err)
		} else {
			debug.Logf("report written to %s\n", cfg.Report)
		}
	}
	return runErr
}
