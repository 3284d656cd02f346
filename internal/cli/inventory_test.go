package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ecst/vbuild/internal/storage"
)

var sampleRows = []storage.InventoryRow{
	{
		Host:           "esx01.lab.local",
		Classification: storage.Classification{CanonicalName: "naa.01", CapacityGB: 400, Media: storage.MediaSSD},
		Status:         storage.StatusEligible,
	},
	{
		Host:           "esx01.lab.local",
		Classification: storage.Classification{CanonicalName: "naa.02", CapacityGB: 1800.5, Media: storage.MediaHDD},
		Status:         storage.StatusCapacity,
	},
}

func TestPrintInventoryTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printInventory(&out, sampleRows, tableFormat, ""))

	assert.Contains(t, out.String(), "HOST")
	assert.Contains(t, out.String(), "naa.02")
	assert.Contains(t, out.String(), "1800.50")
	assert.Contains(t, out.String(), storage.StatusCapacity)
}

func TestPrintInventoryJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printInventory(&out, sampleRows, jsonFormat, ""))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "naa.01", decoded[0]["canonicalName"])
	assert.Equal(t, "SSD", decoded[0]["media"])
}

func TestWriteInventoryWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disks.xlsx")
	var out bytes.Buffer
	require.NoError(t, printInventory(&out, sampleRows, xlsxFormat, path))
	assert.Contains(t, out.String(), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{inventorySheet}, f.GetSheetList())
	assert.Equal(t, inventorySheet, f.GetSheetName(f.GetActiveSheetIndex()))

	rows, err := f.GetRows(inventorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, inventoryHeaders, rows[0])
	assert.Equal(t, "naa.02", rows[2][1])
	assert.Equal(t, "HDD", rows[2][3])
}

func TestInventoryOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "table", output: tableFormat},
		{name: "xlsx", output: xlsxFormat},
		{name: "unknown", output: "csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultInventoryOptions()
			o.Output = tt.output
			err := o.Validate(nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClaimDisksOptionsValidate(t *testing.T) {
	o := DefaultClaimDisksOptions()
	assert.Error(t, o.Validate(nil))

	o.Host, o.Cache = "esx01.lab.local", "naa.01"
	assert.Error(t, o.Validate(nil))

	o.Capacity = []string{"naa.02"}
	assert.NoError(t, o.Validate(nil))
}

func TestWaitOptionsValidate(t *testing.T) {
	o := DefaultWaitOptions()
	assert.Error(t, o.Validate(nil))

	o.Server = "vcenter.lab.local"
	assert.NoError(t, o.Validate(nil))

	o.Interval = 0
	assert.Error(t, o.Validate(nil))
}
