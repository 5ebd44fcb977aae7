// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The scheduling engine, token refresh coordinator, reconciliation check
// and wake-gap monitor all live here.
package services
