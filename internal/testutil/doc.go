// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing sessions, events and run/tool contexts. It is
// not intended for production usage.
package testutil
