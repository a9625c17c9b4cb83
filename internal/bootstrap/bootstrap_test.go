package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBManager_WithoutDatabase(t *testing.T) {
	dbManager, cleanup, err := NewDBManager(context.Background(), &config.Config{})

	require.NoError(t, err)
	assert.IsType(t, database.NoopDBManager{}, dbManager)
	cleanup()
}

func TestNewStores_Local(t *testing.T) {
	input, output, err := NewStores(context.Background(), &config.Config{
		StorageBackend:   config.StorageLocal,
		LocalStorageRoot: t.TempDir(),
	})

	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, input)
	assert.Same(t, input, output)
}

// End to end over a local directory without a database.
func TestNewIngestionService_LocalRun(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads"), 0o755))
	content := "id,fecha_not,clasificacion,diresa,red,microred,establecimiento,institucion,asintomatico,ano,semana\n" +
		"1,01/15/2023,confirmado,lima,lima norte,comas,posta x,minsa,no,2023,3\n" +
		"1,01/15/2023,confirmado,callao,lima norte,comas,posta x,minsa,no,2023,3\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "casos.csv"), []byte(content), 0o644))

	cfg := &config.Config{
		StorageBackend:   config.StorageLocal,
		LocalStorageRoot: root,
		OutputPrefix:     "processed/",
		NumFileWorkers:   2,
	}
	logger := logging.NewLoggerWithOutput("cleaner", "ERROR", &bytes.Buffer{})

	service, cleanup, err := NewIngestionService(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	summary, err := service.Execute(context.Background(), "uploads/")

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1, summary.Results[0].Report.Accepted)
	assert.Equal(t, 1, summary.Results[0].Report.Duplicates)

	out, err := os.ReadFile(filepath.Join(root, "processed", "casos.json"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"diresa":"Lima"`)
	assert.Contains(t, string(out), `"anio_semana":"2023-S03"`)
}
