package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "ci")
	t.Setenv("DB_PASSWORD", "secret")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 1000, cfg.MAGPageSize)
		assert.Equal(t, "short", cfg.MAGStopPolicy)
		assert.Equal(t, "F.FN", cfg.MAGEntityName)
		assert.Equal(t, 60*time.Second, cfg.MAGTimeout)
		assert.Equal(t, []string{"ci", "ai_ci"}, cfg.CooccurrenceCohorts)
		assert.Equal(t, 15, cfg.CooccurrenceMinWeight)
		assert.Contains(t, cfg.MAGMetadata, "DOI")
		assert.False(t, cfg.DateWindowed())
		assert.False(t, cfg.S3Enabled())
		assert.Equal(t, "https://api.unpaywall.org/v2", cfg.UnpaywallBaseURL)
		assert.Empty(t, cfg.UnpaywallEmail)
		assert.Equal(t, "host=localhost user=ci password=secret dbname=ci_db port=5432 sslmode=disable", cfg.DSN())
	})

	t.Run("lists and overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		setRequired(t)
		t.Setenv("MAG_QUERY_VALUES", "collective intelligence,crowdsourcing")
		t.Setenv("CI_FOS", "collective intelligence")
		t.Setenv("MAG_STOP_POLICY", "empty")
		t.Setenv("MAG_START_DATE", "2000-01-01")
		t.Setenv("MAG_END_DATE", "2020-12-31")
		t.Setenv("MAG_WITH_DOI", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"collective intelligence", "crowdsourcing"}, cfg.MAGQueryValues)
		assert.Equal(t, []string{"collective intelligence"}, cfg.CIFos)
		assert.Equal(t, "empty", cfg.MAGStopPolicy)
		assert.True(t, cfg.MAGWithDOI)
		assert.True(t, cfg.DateWindowed())
	})

	t.Run("missing required values", func(t *testing.T) {
		t.Chdir(t.TempDir())
		for _, k := range []string{"DB_HOST", "DB_USER", "DB_PASSWORD"} {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		for env, val := range map[string]string{
			"MAG_STOP_POLICY": "sometimes",
			"COHORT_MODE":     "random",
			"MAG_QUERY_COUNT": "0",
		} {
			t.Run(env, func(t *testing.T) {
				t.Chdir(t.TempDir())
				setRequired(t)
				t.Setenv(env, val)
				_, err := Load()
				assert.Error(t, err)
			})
		}
	})
}
