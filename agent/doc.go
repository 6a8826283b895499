// Package agent contains the model-backed agent used by travelmesh and the
// tree plumbing shared by every agent.
//
//  1. BaseAgent: name, description and parent/child links
//  2. ModelAgent: a conversational, tool-calling agent driven by a flow
//
// Agents form a tree. Any agent may hand the conversation to its children,
// its parent or its peers through transfer_to_agent; the target runs on the
// same RunContext so state written before the handover stays visible.
package agent
