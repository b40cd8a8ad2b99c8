package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func lessonDataset() Dataset {
	return Dataset{
		Headers: []string{"id", "date", "status"},
		Rows: []map[string]string{
			{"id": "l-1", "date": "2099-01-10", "status": "pending"},
			{"id": "l-2", "date": "2099-01-11"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter(';').Render(lessonDataset())
	require.NoError(t, err)
	assert.Equal(t, "id;date;status\nl-1;2099-01-10;pending\nl-2;2099-01-11;\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter(0).Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "lessons")
	assert.Error(t, err)
	_, err = NewXLSXExporter("").Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(lessonDataset(), "lessons")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter("Lessons").Render(lessonDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Lessons")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "date", "status"}, rows[0])
	assert.Equal(t, "pending", rows[1][2])
}
