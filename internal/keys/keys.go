// Package keys builds the stable record keys used for dedup and persistence.
package keys

import (
	"fmt"
	"strings"
)

// PrefixLen is the fixed address prefix length used in token and wallet keys.
const PrefixLen = 12

// IndexSentinel prefixes the per-chain index key.
const IndexSentinel = "index"

// Signal returns the dedup/persistence key for a signal.
// Format: chain:batchId:batchIndex
func Signal(chainID, batchID string, batchIndex int) string {
	return fmt.Sprintf("%s:%s:%d", chainID, batchID, batchIndex)
}

// Token returns the record key for a token aggregate.
// Format: chain:prefix (prefix = first PrefixLen chars of the address).
func Token(chainID, tokenAddress string) string {
	return chainID + ":" + Prefix(tokenAddress)
}

// Wallet returns the record key for a wallet aggregate.
// Format: chain:prefix.
func Wallet(chainID, walletAddress string) string {
	return chainID + ":" + Prefix(walletAddress)
}

// Index returns the key of the per-chain index record.
func Index(chainID string) string {
	return IndexSentinel + ":" + chainID
}

// Prefix returns the fixed-length address prefix. EVM addresses are
// case-insensitive and are lowercased first; Solana addresses are case-sensitive.
func Prefix(address string) string {
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		address = strings.ToLower(address)
	}
	if len(address) <= PrefixLen {
		return address
	}
	return address[:PrefixLen]
}
