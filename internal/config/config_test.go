package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain isolates tests from IFJ_* variables in the caller's environment.
func TestMain(m *testing.M) {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix+"_") {
			_ = os.Unsetenv(k)
		}
	}
	os.Exit(m.Run())
}

func validConfig() Config {
	return Config{
		Instance:        "https://acme.atlassian.net",
		User:            "admin@acme.com",
		Password:        "token",
		EntitiesXMLFile: "backup/entities.xml",
		Retry:           RetryConfig{Max: 3, InitialInterval: time.Second},
		HTTP:            HTTPConfig{Timeout: 30 * time.Second},
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.Max)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Zero(t, cfg.HTTP.RateLimit)
	assert.Empty(t, cfg.Report)
	assert.Empty(t, cfg.Instance)
}

func TestEnvironmentBinding(t *testing.T) {
	t.Setenv("IFJ_INSTANCE", "https://env.atlassian.net")
	t.Setenv("IFJ_ENTITIES_XML_FILE", "/tmp/entities.xml")
	t.Setenv("IFJ_RETRY_MAX", "7")
	t.Setenv("IFJ_HTTP_TIMEOUT", "5s")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://env.atlassian.net", cfg.Instance)
	assert.Equal(t, "/tmp/entities.xml", cfg.EntitiesXMLFile)
	assert.Equal(t, 7, cfg.Retry.Max)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ifj.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instance: https://file.atlassian.net
user: admin@file.com
retry:
  max: 1
  initial-interval: 250ms
http:
  rate-limit: 4.5
report: out/report.yaml
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.atlassian.net", cfg.Instance)
	assert.Equal(t, "admin@file.com", cfg.User)
	assert.Equal(t, 1, cfg.Retry.Max)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialInterval)
	assert.InDelta(t, 4.5, cfg.HTTP.RateLimit, 0.0001)
	assert.Equal(t, "out/report.yaml", cfg.Report)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("IFJ_INSTANCE", "https://env.atlassian.net")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("instance", "i", "", "")
	flags.StringP("entitiesXmlFile", "e", "", "")
	flags.Int("retries", 3, "")
	require.NoError(t, flags.Parse([]string{"-i", "https://flag.atlassian.net", "-e", "x/entities.xml", "--retries", "0"}))

	v := New()
	require.NoError(t, BindFlags(v, flags, map[string]string{
		KeyInstance:        "instance",
		KeyEntitiesXMLFile: "entitiesXmlFile",
		KeyRetryMax:        "retries",
		KeyUser:            "user",
	}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "https://flag.atlassian.net", cfg.Instance)
	assert.Equal(t, "x/entities.xml", cfg.EntitiesXMLFile)
	assert.Equal(t, 0, cfg.Retry.Max)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "http instance",
			mutate:  func(c *Config) { c.Instance = "http://acme.atlassian.net" },
			wantErr: []string{"instance must be the Jira Cloud instance URL"},
		},
		{
			name:    "trailing slash",
			mutate:  func(c *Config) { c.Instance = "https://acme.atlassian.net/" },
			wantErr: []string{"instance must be"},
		},
		{
			name:    "bad email",
			mutate:  func(c *Config) { c.User = "Admin <admin@acme.com>" },
			wantErr: []string{"user must be a valid"},
		},
		{
			name:    "wrong file",
			mutate:  func(c *Config) { c.EntitiesXMLFile = "backup/activeobjects.xml" },
			wantErr: []string{"entities xml file"},
		},
		{
			name: "everything wrong",
			mutate: func(c *Config) {
				*c = Config{Retry: RetryConfig{Max: -1}, HTTP: HTTPConfig{RateLimit: -1}}
			},
			wantErr: []string{
				"instance must be", "user must be", "password must be", "entities xml file",
				"retry.max must not be negative", "retry.initial-interval must be positive",
				"http.timeout must be positive", "http.rate-limit must not be negative",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	r := cfg.Redacted()
	assert.Equal(t, "********", r.Password)
	assert.Equal(t, "token", cfg.Password)
}
