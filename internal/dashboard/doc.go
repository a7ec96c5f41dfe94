// Package dashboard holds the app grid's state: the live list of apps, the
// first-run seeding routine, the ticking clock, and per-view sessions.
//
// # Live Sync Binding
//
// Binding owns the one store subscription for the process. Every snapshot
// either triggers seeding (empty snapshot and the marker never set) or
// replaces the whole list, in the order the store delivered it. Watchers
// receive each new list.
//
// # Sessions
//
// Session is the state of one open page: whether staff unlocked the
// admin mode, the login prompt, the edit draft, and the pending delete.
// Transitions are methods on Session. Store writes go through a Writer and
// are fire-and-forget; the list only changes when the next snapshot arrives.
//
// # Clock
//
// Greeting, FormatTime and FormatDate are pure functions of a time. Ticker
// recomputes them every second and publishes the face when it changes.
package dashboard
