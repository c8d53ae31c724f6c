// Package password hashes account passwords with Argon2id and enforces the
// byte-length policy applied at registration and password reset.
//
// Hashes are self-describing PHC strings:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// so parameters can be raised later; [Argon2.NeedsUpgrade] flags hashes minted
// under older settings. The package never stores or logs plaintext.
package password
