// Package password implements Argon2id hashing plus the lifecycle rules the portal
// applies to employee passwords: age-based expiry, reuse history and a weak-password
// denylist.
//
// # Output format
//
// Hashes are encoded in PHC string format so the parameters travel with the hash:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # Architecture boundaries
//
// This package never stores anything. The engine persists hashes and history rows and
// calls in here to decide whether a candidate password is acceptable.
package password
