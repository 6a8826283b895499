package travel

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/travelmesh/internal/testutil"
	"github.com/hupe1980/travelmesh/tool"
)

func float(v float64) *float64 { return &v }

func plannedTrip() *testutil.SessionBuilder {
	return testutil.NewSessionBuilder("s1").
		State(KeyPais, "España").
		State(KeyAtracciones, []string{"Museo del Prado", "Parque Güell"}).
		State(KeyItinerario, []ItineraryDay{
			{Day: 1, StartTime: "09:00", Activity: "Museo del Prado", Location: "Madrid"},
			{Day: 2, StartTime: "10:00", Activity: "Tapas | vermut", Location: "Barcelona"},
		}).
		State(KeyPresupuesto, Budget{Total: float(2500), Flights: float(800), Links: []string{"https://www.airbnb.es"}}).
		State(KeyBusquedas, SearchResults{Hotels: []any{"Hotel Arts"}, Flights: []any{}, Attractions: []any{}})
}

func TestExportMarkdown(t *testing.T) {
	sess := plannedTrip().Build()

	name, data, err := ExportTrip(sess, "")
	require.NoError(t, err)
	assert.Equal(t, "viaje.md", name)

	md := string(data)
	assert.True(t, strings.HasPrefix(md, "# Resumen del viaje\n\n## País\n\nEspaña\n"))
	assert.Contains(t, md, "- Museo del Prado\n- Parque Güell\n")
	assert.Contains(t, md, "| Día | Hora | Actividad | Ubicación |")
	assert.Contains(t, md, "| 1 | 09:00 | Museo del Prado | Madrid |")
	assert.Contains(t, md, `| 2 | 10:00 | Tapas \| vermut | Barcelona |`)
	assert.Contains(t, md, "- Total: $2500\n- Vuelos: $800\n- Enlaces:\n  - https://www.airbnb.es\n")
	assert.NotContains(t, md, "- Hotel:")
	assert.Contains(t, md, "- Hoteles: 1\n  - Hotel Arts\n- Vuelos: 0\n")
	assert.NotContains(t, md, noData)
}

func TestExportMarkdownEmptySession(t *testing.T) {
	_, data, err := ExportTrip(testutil.NewSessionBuilder("s1").Build(), FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, 5, strings.Count(string(data), noData))
}

func TestExportYAML(t *testing.T) {
	name, data, err := ExportTrip(plannedTrip().Build(), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "viaje.yaml", name)

	var got TripSummary
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "España", got.Pais)
	assert.Equal(t, []string{"Museo del Prado", "Parque Güell"}, got.Atracciones)
	require.Len(t, got.Itinerario, 2)
	assert.Equal(t, "Barcelona", got.Itinerario[1].Location)
	require.NotNil(t, got.Presupuesto)
	assert.Equal(t, 2500.0, got.Presupuesto.TotalOrZero())
	assert.Nil(t, got.Presupuesto.Hotel)
}

func TestExportUnknownFormat(t *testing.T) {
	_, _, err := ExportTrip(plannedTrip().Build(), "pdf")

	var ve *tool.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "formato", ve.Field)
}

func TestExportTripTool(t *testing.T) {
	h := plannedTrip().Harness()

	tc := h.ToolContext("c1")

	res, err := NewExportTripTool().Call(tc, map[string]any{"formato": "yaml"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "Resumen del viaje exportado: viaje.yaml"}, res)

	data, err := h.Artifacts.Get("s1", "viaje.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "pais: España")
	assert.Equal(t, len(data), tc.Actions().ArtifactDelta["viaje.yaml"])

	_, err = NewExportTripTool().Call(h.ToolContext("c2"), map[string]any{"formato": "pdf"})

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
	assert.Equal(t, "formato", toolErr.Field)
}
