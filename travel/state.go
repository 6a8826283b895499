package travel

import (
	"encoding/json"
	"fmt"
)

// State keys written by the travel tools.
const (
	KeyPais        = "pais"
	KeyAtracciones = "atracciones"
	KeyItinerario  = "itinerario"
	KeyPresupuesto = "presupuesto"
	KeyBusquedas   = "busquedas"
)

// ItineraryDay is one entry of the day-by-day plan.
type ItineraryDay struct {
	Day       int    `json:"day" yaml:"day" description:"Número de día del viaje, empezando en 1"`
	StartTime string `json:"start_time" yaml:"start_time" description:"Hora de inicio de la actividad, p. ej. 09:00"`
	Activity  string `json:"activity" yaml:"activity" description:"Actividad planificada"`
	Location  string `json:"location" yaml:"location" description:"Lugar de la actividad"`
}

// Budget is the cost estimate of the trip. Every field is optional; the
// stored value is exactly what the model sent.
type Budget struct {
	Total       *float64 `json:"total,omitempty" yaml:"total,omitempty" description:"Presupuesto total"`
	Flights     *float64 `json:"flights,omitempty" yaml:"flights,omitempty" description:"Coste de los vuelos"`
	Hotel       *float64 `json:"hotel,omitempty" yaml:"hotel,omitempty" description:"Coste del alojamiento"`
	Attractions *float64 `json:"attractions,omitempty" yaml:"attractions,omitempty" description:"Coste de las atracciones"`
	Links       []string `json:"links,omitempty" yaml:"links,omitempty" description:"Enlaces de reserva (Airbnb, Booking, etc.)"`
}

// TotalOrZero returns the total, or 0 when it was not given.
func (b Budget) TotalOrZero() float64 {
	if b.Total == nil {
		return 0
	}
	return *b.Total
}

// SearchResults holds raw web search hits grouped by category.
type SearchResults struct {
	Hotels      []any `json:"hotels" yaml:"hotels" description:"Resultados de hoteles"`
	Flights     []any `json:"flights" yaml:"flights" description:"Resultados de vuelos"`
	Attractions []any `json:"attractions" yaml:"attractions" description:"Resultados de atracciones"`
}

// StateReader is the read side of a session state container. It is
// implemented by core.Session, core.RunContext, core.ToolContext and
// core.CallbackContext.
type StateReader interface {
	StateOr(key string, def any) any
}

// Get reads key as T. Values written in this process are returned as is;
// values loaded from a durable store come back as generic JSON shapes and
// are decoded into T. ok is false when the key is absent.
func Get[T any](state StateReader, key string) (value T, ok bool, err error) {
	raw := state.StateOr(key, nil)
	if raw == nil {
		return value, false, nil
	}

	if v, isT := raw.(T); isT {
		return v, true, nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return value, false, fmt.Errorf("state %s: %w", key, err)
	}

	if err := json.Unmarshal(b, &value); err != nil {
		return value, false, fmt.Errorf("state %s holds %T: %w", key, raw, err)
	}

	return value, true, nil
}
