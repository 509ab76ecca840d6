// Package kit adapts transport-agnostic endpoints to the MCP tool surface.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Requests and responses
// are plain structs; the transport owns decoding and encoding.
type Endpoint func(ctx context.Context, req any) (any, error)
