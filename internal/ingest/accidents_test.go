package ingest

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const accidentsHeader = "ID,Severity,Start_Time,End_Time,Start_Lat,Start_Lng,State,City,County," +
	"Temperature(F),Humidity(%),Pressure(in),Visibility(mi),Wind_Speed(mph),Weather_Condition," +
	"Amenity,Bump,Crossing,Give_Way,Junction,No_Exit,Railway,Roundabout,Station,Stop," +
	"Traffic_Calming,Traffic_Signal,Turning_Loop\n"

func accidentRow(id, severity, start, lat, lon, state string) string {
	return id + "," + severity + "," + start + ",2023-03-01 08:45:00," + lat + "," + lon + "," +
		state + ",Springfield,Clark,55.0,65.0,29.92,10.0,8.0,Clear," +
		"False,False,True,False,False,False,False,False,False,False,False,True,False\n"
}

func TestLoadAccidents(t *testing.T) {
	t.Run("parses valid rows and counts drops", func(t *testing.T) {
		path := writeFile(t, "accidents.csv", accidentsHeader+
			accidentRow("A-1", "2", "2023-03-01 08:30:00", "34.05", "-118.24", "CA")+
			accidentRow("A-2", "4", "2023-03-02 17:10:00", "40.71", "-74.00", "NY")+
			accidentRow("A-3", "3", "2023-03-03 12:00:00", "", "", "TX")+
			accidentRow("A-4", "9", "2023-03-04 12:00:00", "34.05", "-118.24", "CA")+
			accidentRow("A-5", "1", "2023-03-05 12:00:00", "61.21", "-149.90", "AK"))

		accidents, stats, err := LoadAccidents(path, AccidentFilter{}, discardLogger())
		require.NoError(t, err)

		require.Len(t, accidents, 2)
		assert.Equal(t, "A-1", accidents[0].ID)
		assert.Equal(t, "A-2", accidents[1].ID)
		assert.True(t, accidents[1].Severe)

		assert.Equal(t, 5, stats.RowsRead)
		assert.Equal(t, 2, stats.Parsed)
		assert.Equal(t, 1, stats.DroppedMissingCoords)
		assert.Equal(t, 1, stats.DroppedBadSeverity)
		assert.Equal(t, 1, stats.DroppedOutOfRange)
	})

	t.Run("state filter", func(t *testing.T) {
		path := writeFile(t, "accidents.csv", accidentsHeader+
			accidentRow("A-1", "2", "2023-03-01 08:30:00", "34.05", "-118.24", "CA")+
			accidentRow("A-2", "2", "2023-03-01 09:30:00", "40.71", "-74.00", "NY"))

		accidents, stats, err := LoadAccidents(path, AccidentFilter{States: []string{"ca"}}, discardLogger())
		require.NoError(t, err)
		require.Len(t, accidents, 1)
		assert.Equal(t, "CA", accidents[0].State)
		assert.Equal(t, 1, stats.Filtered)
	})

	t.Run("max rows stops early", func(t *testing.T) {
		path := writeFile(t, "accidents.csv", accidentsHeader+
			accidentRow("A-1", "2", "2023-03-01 08:30:00", "34.05", "-118.24", "CA")+
			accidentRow("A-2", "2", "2023-03-01 09:30:00", "34.06", "-118.25", "CA")+
			accidentRow("A-3", "2", "2023-03-01 10:30:00", "34.07", "-118.26", "CA"))

		accidents, _, err := LoadAccidents(path, AccidentFilter{MaxRows: 2}, discardLogger())
		require.NoError(t, err)
		assert.Len(t, accidents, 2)
	})

	t.Run("time window filter", func(t *testing.T) {
		path := writeFile(t, "accidents.csv", accidentsHeader+
			accidentRow("A-1", "2", "2023-01-15 08:30:00", "34.05", "-118.24", "CA")+
			accidentRow("A-2", "2", "2023-06-15 08:30:00", "34.05", "-118.24", "CA"))

		filter := AccidentFilter{
			From: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		}
		accidents, _, err := LoadAccidents(path, filter, discardLogger())
		require.NoError(t, err)
		require.Len(t, accidents, 1)
		assert.Equal(t, "A-2", accidents[0].ID)
	})

	t.Run("reordered columns load identically", func(t *testing.T) {
		path := writeFile(t, "accidents.csv",
			"Start_Lng,Start_Lat,Severity,ID,Start_Time\n"+
				"-118.24,34.05,3,A-1,2023-03-01 08:30:00\n")

		accidents, _, err := LoadAccidents(path, AccidentFilter{}, discardLogger())
		require.NoError(t, err)
		require.Len(t, accidents, 1)
		assert.Equal(t, 3, accidents[0].Severity)
		assert.InDelta(t, 34.05, accidents[0].Geo.Lat, 1e-9)
	})

	t.Run("missing required column", func(t *testing.T) {
		path := writeFile(t, "accidents.csv", "ID,State\nA-1,CA\n")
		_, _, err := LoadAccidents(path, AccidentFilter{}, discardLogger())
		assert.ErrorContains(t, err, "missing column")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadAccidents(filepath.Join(t.TempDir(), "nope.csv"), AccidentFilter{}, discardLogger())
		assert.Error(t, err)
	})
}
