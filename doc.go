// Package auth provides the account and guest device backend: JWT issuance
// and verification, a Redis revocation list, bun repositories, and guards
// shared by the go-router REST routes and the GraphQL resolvers.
//
// Authentication:
//   - Guard resolves any supported call shape (a router.Context, a *GraphQLCall
//     or a RequestAccessor) and runs the token through extraction, inspection,
//     verification, the revocation check and identity resolution. The
//     Decision records every state visited.
//   - Revocation lookups that fail follow AUTH_REVOCATION_FAIL_OPEN. When open
//     the token is accepted and a warning is logged.
//   - The unverified fallback only applies outside production and only when
//     AUTH_ALLOW_UNVERIFIED_FALLBACK is set.
//
// Authorization:
//   - RoleGuard reads the roles declared for an operation id from a
//     RoleRegistry. Operations without declared roles only need an
//     authenticated identity.
//
// Guest devices:
//   - GuestDeviceService keeps one row per device id, moves push tokens
//     between devices and derives a fingerprint device id when the client
//     sends none.
package auth
