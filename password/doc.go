// Package password provides argon2id hashing for account credentials.
// Hashes use the PHC string format, so cost parameters travel with the
// hash and can be raised without invalidating existing records.
package password
