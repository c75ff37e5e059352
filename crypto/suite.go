package crypto

import (
	"errors"
	"fmt"
)

// CipherSuite identifies a complete cryptographic suite for the handshake.
type CipherSuite struct {
	DH     string // "X25519"
	Cipher string // "ChaChaPoly", "AESGCM"
	Hash   string // "BLAKE2s", "SHA256", "BLAKE2b"
	Name   string // Full suite name on the wire
}

// Predefined cipher suites in order of preference.
var (
	DefaultCipherSuite = CipherSuite{
		DH:     "X25519",
		Cipher: "ChaChaPoly",
		Hash:   "BLAKE2s",
		Name:   "Noise_XX_25519_ChaChaPoly_BLAKE2s",
	}

	AlternateCipherSuite = CipherSuite{
		DH:     "X25519",
		Cipher: "ChaChaPoly",
		Hash:   "SHA256",
		Name:   "Noise_XX_25519_ChaChaPoly_SHA256",
	}

	AESCipherSuite = CipherSuite{
		DH:     "X25519",
		Cipher: "AESGCM",
		Hash:   "SHA256",
		Name:   "Noise_XX_25519_AESGCM_SHA256",
	}
)

// SupportedCipherSuites lists all suites this implementation can run.
var SupportedCipherSuites = []CipherSuite{
	DefaultCipherSuite,
	AlternateCipherSuite,
	AESCipherSuite,
}

// CipherSuiteNegotiator selects the best mutually supported cipher suite
// between two peers. Local preference order wins.
type CipherSuiteNegotiator struct {
	LocalPreferences   []CipherSuite
	RemoteCapabilities []CipherSuite
	SelectedSuite      *CipherSuite
}

// NewCipherSuiteNegotiator creates a negotiator seeded with the local
// preference list.
func NewCipherSuiteNegotiator() *CipherSuiteNegotiator {
	return &CipherSuiteNegotiator{
		LocalPreferences: SupportedCipherSuites,
	}
}

// SetRemoteCapabilities records the remote peer's supported cipher suites.
func (n *CipherSuiteNegotiator) SetRemoteCapabilities(remote []CipherSuite) {
	n.RemoteCapabilities = remote
}

// Negotiate selects the first local preference the remote also supports.
func (n *CipherSuiteNegotiator) Negotiate() (*CipherSuite, error) {
	if len(n.RemoteCapabilities) == 0 {
		return nil, errors.New("no remote capabilities provided")
	}

	for _, local := range n.LocalPreferences {
		for _, remote := range n.RemoteCapabilities {
			if local.Name == remote.Name {
				selected := local
				n.SelectedSuite = &selected
				return &selected, nil
			}
		}
	}

	return nil, fmt.Errorf("no mutually supported cipher suite (local: %d, remote: %d)",
		len(n.LocalPreferences), len(n.RemoteCapabilities))
}

// FindCipherSuite resolves a suite by its wire name.
func FindCipherSuite(name string) (*CipherSuite, error) {
	for _, suite := range SupportedCipherSuites {
		if suite.Name == name {
			s := suite
			return &s, nil
		}
	}
	return nil, fmt.Errorf("unsupported cipher suite: %s", name)
}
