package travel

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/tool"
)

// Tool names as the agents' instructions refer to them.
const (
	ToolGuardarAtracciones = "guardar_atracciones_al_estado"
	ToolGuardarPais        = "guardar_pais_al_estado"
	ToolGuardarItinerario  = "guardar_itinerario_al_estado"
	ToolGuardarPresupuesto = "guardar_presupuesto_al_estado"
	ToolGuardarBusquedas   = "guardar_busquedas_al_estado"
	ToolExportarViaje      = "exportar_viaje"
)

type attractionsArgs struct {
	Atracciones []string `json:"atracciones" description:"Lista de atracciones turísticas elegidas por el usuario"`
}

type countryArgs struct {
	Pais string `json:"pais" description:"Nombre del país seleccionado por el usuario"`
}

type itineraryArgs struct {
	Itinerario []ItineraryDay `json:"itinerario" description:"Itinerario día por día"`
}

type budgetArgs struct {
	Presupuesto Budget `json:"presupuesto" description:"Presupuesto y opciones de reserva"`
}

type searchArgs struct {
	Busquedas SearchResults `json:"busquedas" description:"Resultados de búsquedas web"`
}

func status(msg string) map[string]string { return map[string]string{"status": msg} }

// NewSaveAttractionsTool appends the given attractions to state["atracciones"].
func NewSaveAttractionsTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolGuardarAtracciones,
		"Almacena la lista de atracciones en state[\"atracciones\"], añadiéndola a las ya guardadas.",
		func(tc *core.ToolContext, args attractionsArgs) (any, error) {
			existing, _, err := Get[[]string](tc, KeyAtracciones)
			if err != nil {
				return nil, err
			}

			next := make([]string, 0, len(existing)+len(args.Atracciones))
			next = append(next, existing...)
			next = append(next, args.Atracciones...)
			tc.SetState(KeyAtracciones, next)

			return status("Lista de atracciones actualizada correctamente."), nil
		})
}

// NewSaveCountryTool overwrites state["pais"].
func NewSaveCountryTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolGuardarPais,
		"Almacena el país seleccionado en state[\"pais\"].",
		func(tc *core.ToolContext, args countryArgs) (any, error) {
			tc.SetState(KeyPais, args.Pais)
			return status(fmt.Sprintf("País seleccionado actualizado: %s", args.Pais)), nil
		})
}

// NewSaveItineraryTool replaces state["itinerario"].
func NewSaveItineraryTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolGuardarItinerario,
		"Almacena el itinerario día por día en state[\"itinerario\"]. "+
			"Formato: [{\"day\": 1, \"start_time\": \"09:00\", \"activity\": \"...\", \"location\": \"...\"}, ...]",
		func(tc *core.ToolContext, args itineraryArgs) (any, error) {
			days := append([]ItineraryDay{}, args.Itinerario...)
			tc.SetState(KeyItinerario, days)
			return status(fmt.Sprintf("Itinerario guardado: %d días planificados", len(days))), nil
		})
}

// NewSaveBudgetTool replaces state["presupuesto"]. The stored budget is not
// normalized; only the confirmation falls back to a total of 0.
func NewSaveBudgetTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolGuardarPresupuesto,
		"Almacena el presupuesto y las opciones de reserva en state[\"presupuesto\"]. "+
			"Formato: {\"total\": 2500, \"flights\": 800, \"hotel\": 1200, \"attractions\": 500, \"links\": [...]}",
		func(tc *core.ToolContext, args budgetArgs) (any, error) {
			tc.SetState(KeyPresupuesto, args.Presupuesto)
			return status("Presupuesto calculado: $" + formatAmount(args.Presupuesto.TotalOrZero())), nil
		})
}

// NewSaveSearchResultsTool replaces state["busquedas"].
func NewSaveSearchResultsTool() *tool.FunctionTool {
	return tool.NewTypedTool(ToolGuardarBusquedas,
		"Almacena los resultados de búsquedas web en state[\"busquedas\"]. "+
			"Formato: {\"hotels\": [...], \"flights\": [...], \"attractions\": [...]}",
		func(tc *core.ToolContext, args searchArgs) (any, error) {
			tc.SetState(KeyBusquedas, args.Busquedas)
			return status("Resultados de búsquedas web guardados correctamente."), nil
		})
}

// formatAmount prints 2500 as "2500" and 99.5 as "99.5".
func formatAmount(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// toolFactories maps the names usable in agents.yaml to constructors.
var toolFactories = map[string]func() tool.Tool{
	ToolGuardarAtracciones: func() tool.Tool { return NewSaveAttractionsTool() },
	ToolGuardarPais:        func() tool.Tool { return NewSaveCountryTool() },
	ToolGuardarItinerario:  func() tool.Tool { return NewSaveItineraryTool() },
	ToolGuardarPresupuesto: func() tool.Tool { return NewSaveBudgetTool() },
	ToolGuardarBusquedas:   func() tool.Tool { return NewSaveSearchResultsTool() },
	ToolExportarViaje:      func() tool.Tool { return NewExportTripTool() },
}

// NewTool returns a fresh instance of the named travel tool.
func NewTool(name string) (tool.Tool, error) {
	factory, ok := toolFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown travel tool %q", name)
	}
	return factory(), nil
}
