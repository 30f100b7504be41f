// Package token issues and verifies the three credential kinds used by the
// Contacts API core: access, refresh, and email-verification tokens.
//
// Every token carries an explicit purpose claim and is signed with the
// secret registered for that purpose. The two mechanisms are independent
// layers of the same defense: secret separation stops cross-purpose replay
// outright, and the claim check keeps stopping it even under a secret
// misconfiguration.
//
// # What this package must NOT do
//
//   - Touch Redis or any other store (revocation lives in package revocation).
//   - Accept a token of one purpose where another purpose is required.
//   - Log or otherwise expose signing secrets.
package token
