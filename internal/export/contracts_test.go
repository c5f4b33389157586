package export

import (
	"bytes"
	"testing"
	"time"

	"leasemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func slots(t *testing.T, from string, n int) []models.HourSlot {
	t.Helper()
	start, err := models.ParseHourSlot(from)
	require.NoError(t, err)
	res := make([]models.HourSlot, n)
	for i := range res {
		res[i] = start + models.HourSlot(i)
	}
	return res
}

func TestWriteContracts(t *testing.T) {
	fred := models.Resource{ID: 1, Name: "Ugly Fred", HourlyRate: 20}
	contracts := []models.Contract{
		{
			ID:        10,
			Requester: models.Requester{ID: 1, Name: "Mister Bob"},
			Resource:  fred,
			Price:     80,
			Hours:     slots(t, "2017-01-01 22", 4),
			CreatedAt: time.Date(2016, 12, 31, 12, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteContracts(&buf, fred, contracts, "2017-01-01", "2017-01-02"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	t.Run("contract rows", func(t *testing.T) {
		title, _ := f.GetCellValue(ContractsSheet, "A1")
		assert.Equal(t, "Ugly Fred (#1): 2017-01-01 - 2017-01-02", title)

		rows, err := f.GetRows(ContractsSheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"10", "Mister Bob", "no", "2017-01-01 22", "2017-01-02 01", "4", "80", "2016-12-31 12:00:00"}, rows[2])
	})

	t.Run("schedule grid", func(t *testing.T) {
		day1, _ := f.GetCellValue(ScheduleSheet, "A2")
		assert.Equal(t, "2017-01-01", day1)

		// 22:00 is column 24 (X), 01:00 next day is column C on row 3
		v, _ := f.GetCellValue(ScheduleSheet, "X2")
		assert.Equal(t, "10", v)
		v, _ = f.GetCellValue(ScheduleSheet, "C3")
		assert.Equal(t, "10", v)
		v, _ = f.GetCellValue(ScheduleSheet, "D3")
		assert.Empty(t, v)
	})
}

func TestWriteContracts_BadRange(t *testing.T) {
	var buf bytes.Buffer
	fred := models.Resource{ID: 1, Name: "Ugly Fred"}

	assert.Error(t, WriteContracts(&buf, fred, nil, "2017-01-02", "2017-01-01"))
	assert.Error(t, WriteContracts(&buf, fred, nil, "yesterday", "2017-01-01"))
}
