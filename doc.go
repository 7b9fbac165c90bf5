// Package session manages the authenticated session of a single user agent:
// who is logged in, with which role, and which routes they may reach.
//
// Session lifecycle:
//   - Manager is the single source of truth. It starts out loading, restores
//     the persisted user and token once through Rehydrate, and afterwards
//     moves only through Dispatch (Login, Logout, SetError, ClearError,
//     SetLoading). Every transition publishes a new immutable Snapshot that
//     subscribers receive in order.
//   - The user record and token are written to a Store under two keys and
//     always as a pair. Corrupted or partial state found during Rehydrate is
//     removed and resolves to an anonymous session; store failures are logged
//     and never block a transition.
//
// Authorization:
//   - Guard.Decide is a pure function of a Snapshot, a role Constraint and
//     the requested path. It renders, redirects to the login page, redirects
//     to the user's role home, or asks the caller to wait while loading.
//   - RouteGuard and middleware/fiberguard apply decisions to go-router and
//     fiber routes and remember the rejected path for the post login
//     redirect.
//
// Activity sinks:
//   - ActivitySink receives login, logout, rehydration, corruption and store
//     failure events. Sinks run after the transition is published, outside
//     the session lock, and errors are only logged. A sink may call back
//     into the Manager.
package session
