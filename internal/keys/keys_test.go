package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal_Deterministic(t *testing.T) {
	k1 := Signal("501", "88213", 4)
	k2 := Signal("501", "88213", 4)
	assert.Equal(t, k1, k2)
	assert.Equal(t, "501:88213:4", k1)
	assert.NotEqual(t, k1, Signal("501", "88213", 5))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "7GCihgDB8fe6", Prefix("7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"))
	assert.Equal(t, "0xabcdef0123", Prefix("0xABCDEF0123456789abcdef0123456789abcdef01"))
	assert.Equal(t, "short", Prefix("short"))
}

func TestTokenWalletIndexKeys(t *testing.T) {
	addr := "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
	assert.Equal(t, "501:7GCihgDB8fe6", Token("501", addr))
	assert.Equal(t, "501:7GCihgDB8fe6", Wallet("501", addr))
	assert.Equal(t, "index:501", Index("501"))
}
