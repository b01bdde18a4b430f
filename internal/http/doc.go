// Package http provides HTTP handlers and middleware for the backlog API.
//
// The router exposes the following endpoints:
//   - POST /users: registers an account. Body: {"email","display_name","password"}.
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at"} with the token also surfaced via the `X-Session-Token`
//     header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the token from the Authorization header or
//     session cookie and clears the cookie.
//   - GET /users/me: the caller's account.
//   - GET /games, POST /games, GET/PUT/DELETE /games/{id}: library entries
//     exchanging the `gameDTO` payload defined in game_handler.go.
//   - GET /backlog, PUT /backlog/order: the active games in play order and their
//     reordering. Body for the latter: {"game_ids":[...]}.
//   - GET /preferences, PUT /preferences: the weekly play budget as `preferenceDTO`.
//   - GET /plans, POST /plans, DELETE /plans/{id}: plan runs. POST allocates sessions
//     for {"weeks":n} and is rate limited per principal; DELETE undoes a run.
//   - GET /play-sessions?from=&to=: stored sessions intersecting an RFC 3339 range.
//   - GET /projections: completion forecast for the backlog.
//
// Every endpoint except POST /users and POST /sessions requires a session.
// Errors use {"error_code","message","errors"}.
package http
