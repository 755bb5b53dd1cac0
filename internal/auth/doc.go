// Package auth issues and validates the JWT access tokens that protect the
// thermostat API.
//
// Tokens are HS256-signed with the configured secret and carry a role.
// Admins may change the thermostat; viewers may only read it. There is no
// user database: operators mint tokens with the binary's -issue-token flag.
package auth
