// Package crypto implements the cryptographic primitives consumed by the
// securelink secure-channel core.
//
// This package handles long-term identity keypairs, authenticated encryption,
// domain-separated key derivation, hybrid post-quantum key encapsulation, and
// replay protection. Higher layers (noise, ratchet, session) build on these
// capabilities and never touch the underlying libraries directly.
//
// Example:
//
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", hex.EncodeToString(keys.Public[:]))
//	defer crypto.WipeKeyPair(keys)
//
// # Key derivation
//
// All derivation goes through DeriveKey, a BLAKE3 keyed construction with
// per-purpose labels. Labels are never reused across purposes; see the Label*
// constants. RootStep and ChainStep implement the one-way root and chain key
// advancement used by the ratchet package.
//
// # Secure memory
//
// Private scalars and derived keys must be wiped before release on every exit
// path. Use SecureWipe/ZeroBytes, or WipeKeyPair for identity keys. Callers
// should defer the wipe at acquisition time rather than scattering cleanup
// calls through the code.
package crypto
