package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/score"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))
	v.SetEnvPrefix("CONSOLIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)

	def := model.DefaultConfig()
	assert.Equal(t, def.VectorStore.Collection, cfg.VectorStore.Collection)
	assert.Equal(t, def.Retry.InitialInterval, cfg.Retry.InitialInterval)
	assert.Equal(t, def.Scoring.StrategicKeywords, cfg.Scoring.StrategicKeywords)
}

func TestLoadConfig_EnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("CONSOLIDATOR_VECTOR_STORE_BACKEND", "sqlite")
	t.Setenv("CONSOLIDATOR_BREAKER_COOLDOWN", "45s")
	t.Setenv("CONSOLIDATOR_CONCURRENCY_CHUNK_WORKERS", "6")

	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.VectorStore.Backend)
	assert.Equal(t, 45*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 6, cfg.Concurrency.ChunkWorkers)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: hash\n  dimensions: 64\nhistory:\n  size: 5\n"), 0o644))

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.History.Size)
	// Untouched keys keep their defaults
	assert.Equal(t, "knowledge_consolidator", cfg.VectorStore.Collection)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CONSOLIDATOR_VECTOR_STORE_BACKEND", "pinecone")

	_, err := loadConfig(newTestViper(t))
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig().Embedding.Model, cfg.Embedding.Model)

	assert.Error(t, writeDefaultConfig(path), "existing file must not be overwritten")
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(list, []byte(`[{"id":"a","raw_score":85},{"id":"b","raw_score":21.5}]`), 0o644))
	items, err := readItems(list)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 21.5, items[1].RawScore)

	single := filepath.Join(dir, "item.yaml")
	require.NoError(t, os.WriteFile(single, []byte("id: c\nraw_score: 0\ncategories: [insight]\n"), 0o644))
	items, err = readItems(single)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"insight"}, items[0].Categories)

	_, err = readItems(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRenderResults(t *testing.T) {
	items := []model.ScoredItem{{ID: "a"}, {ID: "b"}}
	results := []score.BatchResult{
		{Index: 0, Result: model.ConfidenceResult{ItemID: "a", FinalScore: 0.9, Label: model.LabelHigh, Strategy: "hybrid"}},
		{Index: 1, Result: model.ConfidenceResult{ItemID: "b", FinalScore: 0.2, Label: model.LabelUncertain, Strategy: "adaptive"}},
	}

	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, items, results, "text"))
	assert.Contains(t, buf.String(), "0.900")
	assert.Contains(t, buf.String(), "adaptive")

	buf.Reset()
	require.NoError(t, renderResults(&buf, items, results, "yaml"))
	assert.Contains(t, buf.String(), "final_score: 0.9")

	assert.Error(t, renderResults(&buf, items, results, "xml"))
}
