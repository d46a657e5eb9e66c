// Package fingerprint turns a binary audio payload plus coarse metadata
// into a stable content digest used as the dedup/throttle key.
package fingerprint
