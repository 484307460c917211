package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	"github.com/odyssey-erp/odyssey-stock/jobs"
)

func TestBuildLowStockTask(t *testing.T) {
	task, err := buildTask(jobs.TaskInventoryLowStockScan, []string{"tools", "raw_material"})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskInventoryLowStockScan, task.Type())

	var payload jobs.LowStockScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, []inventory.Kind{inventory.KindTool, inventory.KindRawMaterial}, payload.Kinds)

	_, err = buildTask(jobs.TaskInventoryLowStockScan, []string{"widgets"})
	require.Error(t, err)
}

func TestBuildCleanupTask(t *testing.T) {
	task, err := buildTask(jobs.TaskIdempotencyCleanup, []string{"72h"})
	require.NoError(t, err)
	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 72*time.Hour, payload.Retain)

	_, err = buildTask(jobs.TaskIdempotencyCleanup, []string{"soon"})
	require.Error(t, err)

	_, err = buildTask("mail:send", nil)
	require.Error(t, err)
}
