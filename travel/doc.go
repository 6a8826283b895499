// Package travel is the travel-planning assistant built on travelmesh.
//
// It provides:
//   - the typed state schema of a planning session (pais, atracciones,
//     itinerario, presupuesto, busquedas) and typed reads over it
//   - the state-mutation tools the agents call to record the user's choices
//   - the trip export tool and its markdown/YAML renderers
//   - the model interaction logging callbacks
//   - the agent tree declared in agents.yaml and the App that wires it to a
//     model provider, a session store, a log sink and a runner
package travel
