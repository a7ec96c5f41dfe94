// Package webui serves the app launcher dashboard.
//
// Every page load creates a view: a dashboard session identified by a signed
// view token. htmx actions carry the token in the X-View-Token header and
// get the re-rendered shell back. The page follows the shared app list and
// the clock over /events (Server-Sent Events); /ws offers the same data as
// JSON frames for other clients.
//
// Admin actions are refused with 403 until the view is unlocked with the
// admin password. A view that has expired or been evicted answers 410 and
// asks htmx to reload the page.
package webui
