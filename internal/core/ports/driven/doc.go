// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CredentialStore: Persists the access/refresh token pair
//   - AttendanceClient: The remote attendance API
//   - ConfigStore: Work schedule and API configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ActivityLog: Best-effort persistent activity journal
//   - OperationStore: Resolved-operation history for observability
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
