// Package server assembles appland from its parts.
//
// It opens the configured document store, starts the live sync binding and
// the clock, and serves the web UI plus health endpoints over HTTP. Shutdown
// runs in a fixed order: background loops first (ending every open stream),
// then HTTP, then pending store writes, and finally the store itself.
package server
