package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/interfaces"
	"github.com/ternarybob/batchmon/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")}
	manager, err := NewManager(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestJobStorage_SaveGetList(t *testing.T) {
	storage := newTestManager(t).JobStorage()
	ctx := context.Background()

	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Zeta", LogFilePath: " /var/log/zeta.log "}))
	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Alpha", BatchKind: "Hourly"}))

	job, err := storage.GetJob(ctx, "Zeta")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/zeta.log", job.LogFilePath)
	assert.Equal(t, models.BatchKindFixedTime, job.BatchKind)
	assert.False(t, job.CreatedAt.IsZero())

	jobs, err := storage.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Alpha", jobs[0].Name)
	assert.Equal(t, models.BatchKindHourly, jobs[0].BatchKind)

	count, err := storage.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestJobStorage_UpsertKeepsCreatedAt(t *testing.T) {
	storage := newTestManager(t).JobStorage()
	ctx := context.Background()

	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Export", LogFilePath: "/a.log"}))
	first, err := storage.GetJob(ctx, "Export")
	require.NoError(t, err)

	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Export", LogFilePath: "/b.log"}))
	second, err := storage.GetJob(ctx, "Export")
	require.NoError(t, err)

	assert.Equal(t, "/b.log", second.LogFilePath)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	count, _ := storage.CountJobs(ctx)
	assert.Equal(t, 1, count)
}

func TestJobStorage_RejectsInvalidJob(t *testing.T) {
	storage := newTestManager(t).JobStorage()

	assert.Error(t, storage.SaveJob(context.Background(), &models.Job{Name: ""}))
	assert.Error(t, storage.SaveJob(context.Background(), &models.Job{Name: `bad\name`}))
}

func TestJobStorage_DeleteAndNotFound(t *testing.T) {
	storage := newTestManager(t).JobStorage()
	ctx := context.Background()
	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Export"}))

	require.NoError(t, storage.DeleteJob(ctx, "Export"))

	_, err := storage.GetJob(ctx, "Export")
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)
	assert.ErrorIs(t, storage.DeleteJob(ctx, "Export"), interfaces.ErrJobNotFound)
}

func TestParseJobFile(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		want   []string
	}{
		{"toml list", "toml", "[[jobs]]\nname = \"A\"\nbatch_kind = \"Hourly\"\n\n[[jobs]]\nname = \"B\"\n", []string{"A", "B"}},
		{"toml single", "toml", "name = \"Solo\"\nlog_file_path = \"/x.log\"\n", []string{"Solo"}},
		{"yaml list", "yaml", "jobs:\n  - name: A\n  - name: B\n", []string{"A", "B"}},
		{"json array", "json", `[{"name":"A"},{"name":"B","batch_kind":"FixedTime"}]`, []string{"A", "B"}},
		{"json object", "json", `{"jobs":[{"name":"A"}]}`, []string{"A"}},
		{"empty", "yaml", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := ParseJobFile([]byte(tt.data), tt.format)
			require.NoError(t, err)
			names := []string{}
			for _, job := range jobs {
				names = append(names, job.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := ParseJobFile([]byte(`{"name":"A","batch_kind":"weekly"}`), "json")
	assert.Error(t, err)
	_, err = ParseJobFile([]byte("name: A"), "ini")
	assert.Error(t, err)
}

func TestParseJobFile_DesktopMonitorList(t *testing.T) {
	data := `[
  {
    "Name": "Nightly",
    "LogFilePath": "C:\\jobs\\nightly.log",
    "ErrorLogFilePath": "C:\\jobs\\nightly_error.log",
    "ConfigFilePath": "",
    "ExecutablePath": "C:\\jobs\\nightly.exe",
    "CustomLogFilePath": null,
    "Status": 0,
    "LastRun": "0001-01-01T00:00:00",
    "StatusMessage": "",
    "IsScheduled": false,
    "BatchType": 1
  },
  {
    "Name": "Morning",
    "LogFilePath": "C:\\jobs\\morning.log",
    "BatchType": 0
  },
  {
    "Name": "Evening",
    "BatchType": "Hourly"
  }
]`

	jobs, err := ParseJobFile([]byte(data), "json")
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "Nightly", jobs[0].Name)
	assert.Equal(t, `C:\jobs\nightly.log`, jobs[0].LogFilePath)
	assert.Equal(t, `C:\jobs\nightly_error.log`, jobs[0].ErrorLogFilePath)
	assert.Equal(t, `C:\jobs\nightly.exe`, jobs[0].ExecutablePath)
	assert.Empty(t, jobs[0].CustomLogFilePath)
	assert.Equal(t, models.BatchKindHourly, jobs[0].BatchKind)

	assert.Equal(t, `C:\jobs\morning.log`, jobs[1].LogFilePath)
	assert.Equal(t, models.BatchKindFixedTime, jobs[1].BatchKind)
	assert.Equal(t, models.BatchKindHourly, jobs[2].BatchKind)

	_, err = ParseJobFile([]byte(`[{"Name":"A","BatchType":7}]`), "json")
	assert.Error(t, err)
	_, err = ParseJobFile([]byte(`[{"Name":"A","BatchType":true}]`), "json")
	assert.Error(t, err)
}

func TestExportJobs_JSONUsesDesktopMonitorShape(t *testing.T) {
	storage := newTestManager(t).JobStorage()
	ctx := context.Background()
	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Sync", LogFilePath: "/logs/sync.log", BatchKind: models.BatchKindHourly}))

	var buf bytes.Buffer
	require.NoError(t, ExportJobs(ctx, storage, &buf, "json"))

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Sync", entries[0]["Name"])
	assert.Equal(t, "/logs/sync.log", entries[0]["LogFilePath"])
	assert.Equal(t, float64(1), entries[0]["BatchType"])
	assert.NotContains(t, entries[0], "log_file_path")
}

func TestLoadJobsFromFiles(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("nightly.toml", "name = \"Nightly\"\nlog_file_path = \"/logs/nightly.log\"\n")
	write("hourly.yml", "jobs:\n  - name: Hourly\n    batch_kind: hourly\n")
	write("broken.json", "{not json")
	write("notes.txt", "name = \"Ignored\"")
	write("invalid.yaml", "name: \"a/b\"\n")

	require.NoError(t, manager.LoadJobsFromFiles(ctx, dir))

	jobs, err := manager.JobStorage().ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Hourly", jobs[0].Name)
	assert.True(t, jobs[0].IsHourly())
	assert.Equal(t, "Nightly", jobs[1].Name)

	// Reloading upserts rather than duplicating
	count, err := LoadJobsFromFiles(ctx, manager.JobStorage(), dir, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	total, _ := manager.JobStorage().CountJobs(ctx)
	assert.Equal(t, 2, total)

	require.NoError(t, manager.LoadJobsFromFiles(ctx, filepath.Join(dir, "missing")))
}

func TestExportJobsRoundTrip(t *testing.T) {
	storage := newTestManager(t).JobStorage()
	ctx := context.Background()
	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Export", LogFilePath: "/logs/export.log", BatchKind: models.BatchKindHourly}))
	require.NoError(t, storage.SaveJob(ctx, &models.Job{Name: "Import", ExecutablePath: `C:\jobs\StartServices.exe`}))

	for _, format := range []string{"toml", "yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ExportJobs(ctx, storage, &buf, format))
			assert.NotContains(t, buf.String(), "created_at")

			jobs, err := ParseJobFile(buf.Bytes(), format)
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, "/logs/export.log", jobs[0].LogFilePath)
			assert.Equal(t, models.BatchKindHourly, jobs[0].BatchKind)
			assert.Equal(t, `C:\jobs\StartServices.exe`, jobs[1].ExecutablePath)
		})
	}

	assert.Error(t, ExportJobs(ctx, storage, &bytes.Buffer{}, "xml"))
}
