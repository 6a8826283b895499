// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// A Model turns a Request (system instruction, conversation contents, tool
// declarations and sampling config) into a stream of Responses. Providers
// live in sub-packages (gemini, openai, anthropic) so agents and flows stay
// decoupled from vendor SDKs. MockModel scripts answers for tests.
package model
