// Package address validates participant addresses before they are scored.
//
// On Solana, user wallets are ed25519 public keys and therefore lie on the
// curve; program-derived addresses (pools, vaults, bonding curves) are off the
// curve by construction. Off-curve participants are not wallets and are dropped.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ChainSolana is the provider chain identifier for Solana.
const ChainSolana = "501"

// Errors returned by address helpers.
var (
	ErrEmpty         = errors.New("empty address")
	ErrInvalidLength = errors.New("invalid address length")
)

// DecodeSolana decodes a base58 Solana address into its 32-byte public key.
func DecodeSolana(addr string) ([]byte, error) {
	if addr == "" {
		return nil, ErrEmpty
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(raw))
	}
	return raw, nil
}

// IsOnCurve reports whether the 32-byte key is a valid ed25519 point.
func IsOnCurve(key []byte) bool {
	if len(key) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}

// IsEVM reports whether addr looks like a 20-byte hex EVM address.
func IsEVM(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	body := addr[2:]
	if len(body) != 40 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}

// IsWallet reports whether addr is a user wallet on the given chain.
// Solana addresses must decode and be on-curve; other chains accept EVM hex.
func IsWallet(chainID, addr string) bool {
	if addr == "" {
		return false
	}
	if chainID == ChainSolana {
		key, err := DecodeSolana(addr)
		if err != nil {
			return false
		}
		return IsOnCurve(key)
	}
	return IsEVM(addr)
}

// Short renders an address as head…tail for display.
func Short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
