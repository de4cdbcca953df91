// Package server implements the dcinv HTTP API surface.
//
// Owns:
//   - HTTP routing, handlers, and request/response contracts
//   - Authentication (user registration, login, JWT verification)
//   - Mapping store error kinds onto HTTP status codes
//
// Does not own:
//   - Storage internals or transaction boundaries (internal/store)
//   - Counter and cascade semantics (enforced inside store operations)
//
// Invariants:
//   - JSON responses are consistent via writeJSON
//   - Mutating inventory routes require a token when a JWT secret is set
//   - Handlers never touch the database outside a single store call
package server
