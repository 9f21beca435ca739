package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxwatch/internal/config"
	"fxwatch/internal/domain"
	"fxwatch/internal/insight"
	"fxwatch/internal/storage"
)

// runCLI executes the root command with args against an empty config
// directory and a private storage path.
func runCLI(t *testing.T, storagePath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_PATH", storagePath)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	oldConfigPath := configPath
	t.Cleanup(func() { configPath = oldConfigPath })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "fxwatch dev (none)\n", out)
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestSourcesCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Regexp(t, `ing\s+ING Think FX\s+fx_daily`, out)
	assert.Regexp(t, `investing\s+InvestingLive Feed\s+general_news`, out)
}

func TestSearchCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(dbPath, logger)
	require.NoError(t, err)
	_, err = repo.AddArticle(context.Background(), domain.HistoryEntry{
		URL:    "https://think.ing.com/articles/fx-daily-yen",
		Title:  "FX Daily: le yen rebondit",
		Source: "ing",
		Tags:   []string{"#JPY"},
		Date:   time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	out, err := runCLI(t, dbPath, "search", "#jpy")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-03-04 08:00")
	assert.Contains(t, out, "FX Daily: le yen rebondit")
	assert.Contains(t, out, "https://think.ing.com/articles/fx-daily-yen")

	out, err = runCLI(t, dbPath, "search", "franc", "suisse")
	require.NoError(t, err)
	assert.Equal(t, "No article found for \"franc suisse\"\n", out)
}

func TestAskCommand(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "ask", "alice", "et le yen ?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id")

	out, err := runCLI(t, t.TempDir(), "ask", "42", "et", "le", "yen", "?")
	require.NoError(t, err, "an unknown user gets an explanation, not an error")
	assert.NotEmpty(t, out)
}

func TestBriefingRequiresLLM(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "briefing")
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "LLM_API_KEY", cfgErr.Key)
}

func TestPrintBriefings(t *testing.T) {
	var out bytes.Buffer
	printBriefings(&out, []insight.Delivered{
		{UserID: 7, Text: "USD haussier."},
		{UserID: 9, Text: "EUR sous pression."},
	})
	assert.Equal(t, "Briefings sent: 2\n\n--- user 7 ---\nUSD haussier.\n\n--- user 9 ---\nEUR sous pression.\n", out.String())

	out.Reset()
	printBriefings(&out, nil)
	assert.Equal(t, "Briefings sent: 0\n", out.String())
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log, err = newLogger(config.LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = newLogger(config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}
