// Package auth provides the session layer of the storefront: identity
// storage contracts, password and provider logins, signed session tokens,
// role based route guards and the HTTP session API.
//
// Identities:
//   - A User carries exactly one Credential, a LocalCredential holding a
//     bcrypt hash or a ProviderCredential linking it to an external provider.
//     Emails are stored lowercased and unique across both kinds.
//   - Users is the storage contract. The repository/bunrepo and
//     repository/mongorepo packages implement it for SQL and MongoDB.
//
// Sessions:
//   - TokenService issues HS256 tokens carrying the id, email and role of the
//     identity at issue time. Role changes show up on the next login.
//   - AccessGuard reads the token from the session cookie or the bearer
//     header and admits a route by role.
//
// Activity sinks:
//   - ActivitySink receives register, login, logout, access denied and role
//     change events. Sinks run best effort, errors are logged and never fail
//     the request. MultiActivitySink fans out to several sinks.
package auth
