// Package mcpconfig defines the MCP registry snapshot the mission runtime
// consumes. It never implements an MCP server; it only reads a read-only
// snapshot of enabled servers and writes their connection details into a
// workspace's opencode.json (package wsprep). Entry identity follows
// github.com/modelcontextprotocol/go-sdk/mcp.Implementation's handshake
// shape, so a registry backed by that SDK's client slots in without a
// translation layer.
package mcpconfig

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport identifies how an MCP server is reached.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportStdio Transport = "stdio"
)

// Entry is one MCP server in a registry snapshot; package wsprep skips
// entries whose Enabled is false.
type Entry struct {
	// Name is the human-readable/display server name, pre-sanitization.
	Name string

	// Implementation identifies the server per the MCP SDK's handshake
	// shape, when known.
	Implementation *mcp.Implementation

	Enabled   bool
	Transport Transport

	// Stdio transport fields.
	Command string
	Args    []string
	Env     map[string]string

	// HTTP transport fields.
	Endpoint string
}

// Registry returns a read-only snapshot of the MCP servers currently
// enabled for a mission's backend. Implementations live outside this
// module; package wsprep only consumes this interface.
type Registry interface {
	Snapshot(ctx context.Context, backendID string) ([]Entry, error)
}

// Static is a Registry backed by a fixed, in-memory entry list — used by
// the cmd/missionrtctl demo and by tests in place of a live registry
// connection.
type Static struct {
	Entries []Entry
}

// Snapshot returns the static entry list unchanged.
func (s Static) Snapshot(context.Context, string) ([]Entry, error) {
	return s.Entries, nil
}
