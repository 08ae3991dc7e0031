// Package access is the authorization and subscription policy engine behind
// a multi-tenant dairy-operations console. Three actor classes (platform
// admin, dairy operator, farmer) share one application but see different
// navigation, CRUD capability, and paywall states depending on an
// independently managed subscription record.
//
// Session lifecycle:
//   - Controller owns login, registration, the silent startup refresh, and
//     logout. It is the single writer of the SessionStore and of the durable
//     bearer token; any refresh failure falls through to logout so a dead
//     token never backs an authenticated UI.
//
// Access decisions:
//   - DecisionEngine combines the static route policy table, the role
//     authorization model, and the wall-clock-derived subscription state into
//     one total decision function. Unknown routes and invalid roles deny;
//     role membership is checked before billing so route existence never
//     leaks through the paywall.
//
// Route guarding:
//   - RouteGuard adapts the engine into router middleware: neutral loading
//     view while the startup check runs, login redirect for anonymous
//     requests, and role-aware redirects on denial (unsubscribed dairy
//     operators land on the subscription plans screen).
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the controller and
//     guard to describe logins, refresh fallthroughs, and access denials.
//     Sinks run best-effort so telemetry can never block a decision.
package access
