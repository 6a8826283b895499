package travel

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/tool"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
)

// TripSummary is everything a planning session has recorded.
type TripSummary struct {
	Pais        string         `json:"pais" yaml:"pais"`
	Atracciones []string       `json:"atracciones" yaml:"atracciones"`
	Itinerario  []ItineraryDay `json:"itinerario" yaml:"itinerario"`
	Presupuesto *Budget        `json:"presupuesto,omitempty" yaml:"presupuesto,omitempty"`
	Busquedas   *SearchResults `json:"busquedas,omitempty" yaml:"busquedas,omitempty"`
}

// BuildTripSummary collects the five travel keys from state. Absent keys
// leave their zero value.
func BuildTripSummary(state StateReader) (TripSummary, error) {
	var (
		s   TripSummary
		err error
	)

	if s.Pais, _, err = Get[string](state, KeyPais); err != nil {
		return s, err
	}
	if s.Atracciones, _, err = Get[[]string](state, KeyAtracciones); err != nil {
		return s, err
	}
	if s.Itinerario, _, err = Get[[]ItineraryDay](state, KeyItinerario); err != nil {
		return s, err
	}

	budget, ok, err := Get[Budget](state, KeyPresupuesto)
	if err != nil {
		return s, err
	}
	if ok {
		s.Presupuesto = &budget
	}

	searches, ok, err := Get[SearchResults](state, KeyBusquedas)
	if err != nil {
		return s, err
	}
	if ok {
		s.Busquedas = &searches
	}

	return s, nil
}

// ArtifactName returns the artifact id an export in format is saved as.
func ArtifactName(format string) string {
	if format == FormatYAML {
		return "viaje.yaml"
	}
	return "viaje.md"
}

// RenderTrip renders s as markdown or YAML. An empty format means markdown.
func RenderTrip(s TripSummary, format string) ([]byte, error) {
	switch format {
	case "", FormatMarkdown:
		return []byte(renderMarkdown(s)), nil
	case FormatYAML:
		return yaml.Marshal(s)
	default:
		return nil, &tool.ValidationError{
			Field:   "formato",
			Value:   format,
			Message: fmt.Sprintf("unsupported format %q (use %s or %s)", format, FormatMarkdown, FormatYAML),
		}
	}
}

// ExportTrip renders the trip recorded in state and returns the artifact
// name with its content.
func ExportTrip(state StateReader, format string) (string, []byte, error) {
	summary, err := BuildTripSummary(state)
	if err != nil {
		return "", nil, err
	}

	data, err := RenderTrip(summary, format)
	if err != nil {
		return "", nil, err
	}

	return ArtifactName(format), data, nil
}

const noData = "_Sin datos._"

func renderMarkdown(s TripSummary) string {
	var sb strings.Builder

	sb.WriteString("# Resumen del viaje\n\n## País\n\n")
	if s.Pais != "" {
		sb.WriteString(s.Pais + "\n")
	} else {
		sb.WriteString(noData + "\n")
	}

	sb.WriteString("\n## Atracciones\n\n")
	if len(s.Atracciones) == 0 {
		sb.WriteString(noData + "\n")
	}
	for _, a := range s.Atracciones {
		fmt.Fprintf(&sb, "- %s\n", a)
	}

	sb.WriteString("\n## Itinerario\n\n")
	if len(s.Itinerario) == 0 {
		sb.WriteString(noData + "\n")
	} else {
		sb.WriteString("| Día | Hora | Actividad | Ubicación |\n|---|---|---|---|\n")
		for _, d := range s.Itinerario {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", d.Day, cell(d.StartTime), cell(d.Activity), cell(d.Location))
		}
	}

	sb.WriteString("\n## Presupuesto\n\n")
	if s.Presupuesto == nil {
		sb.WriteString(noData + "\n")
	} else {
		b := s.Presupuesto
		fmt.Fprintf(&sb, "- Total: $%s\n", formatAmount(b.TotalOrZero()))
		writeAmount(&sb, "Vuelos", b.Flights)
		writeAmount(&sb, "Hotel", b.Hotel)
		writeAmount(&sb, "Atracciones", b.Attractions)
		if len(b.Links) > 0 {
			sb.WriteString("- Enlaces:\n")
			for _, l := range b.Links {
				fmt.Fprintf(&sb, "  - %s\n", l)
			}
		}
	}

	sb.WriteString("\n## Búsquedas\n\n")
	if s.Busquedas == nil {
		sb.WriteString(noData + "\n")
	} else {
		writeHits(&sb, "Hoteles", s.Busquedas.Hotels)
		writeHits(&sb, "Vuelos", s.Busquedas.Flights)
		writeHits(&sb, "Atracciones", s.Busquedas.Attractions)
	}

	return sb.String()
}

func writeAmount(sb *strings.Builder, label string, v *float64) {
	if v != nil {
		fmt.Fprintf(sb, "- %s: $%s\n", label, formatAmount(*v))
	}
}

func writeHits(sb *strings.Builder, label string, hits []any) {
	fmt.Fprintf(sb, "- %s: %d\n", label, len(hits))
	for _, h := range hits {
		fmt.Fprintf(sb, "  - %s\n", hitText(h))
	}
}

func hitText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// cell escapes pipes and newlines so a value stays inside its table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

type exportArgs struct {
	Formato string `json:"formato,omitempty" enum:"markdown,yaml" description:"Formato del resumen: markdown (por defecto) o yaml"`
}

// NewExportTripTool renders the trip and saves it as a session artifact.
func NewExportTripTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolExportarViaje,
		"Exporta el resumen final del viaje (país, atracciones, itinerario, presupuesto y búsquedas) a un archivo.",
		func(tc *core.ToolContext, args exportArgs) (any, error) {
			name, data, err := ExportTrip(tc, args.Formato)
			if err != nil {
				return nil, err
			}

			if err := tc.SaveArtifact(name, data); err != nil {
				return nil, fmt.Errorf("save %s: %w", name, err)
			}

			return status("Resumen del viaje exportado: " + name), nil
		})
}
