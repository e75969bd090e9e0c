package format

import "fmt"

type explorer struct {
	account string
	token   string
	chart   string
}

var explorers = map[string]explorer{
	"501":  {"https://solscan.io/account/%s", "https://solscan.io/token/%s", "https://dexscreener.com/solana/%s"},
	"1":    {"https://etherscan.io/address/%s", "https://etherscan.io/token/%s", "https://dexscreener.com/ethereum/%s"},
	"56":   {"https://bscscan.com/address/%s", "https://bscscan.com/token/%s", "https://dexscreener.com/bsc/%s"},
	"8453": {"https://basescan.org/address/%s", "https://basescan.org/token/%s", "https://dexscreener.com/base/%s"},
}

// WalletURL links a wallet on the chain's block explorer. Unknown chains return "".
func WalletURL(chainID, addr string) string {
	if e, ok := explorers[chainID]; ok {
		return fmt.Sprintf(e.account, addr)
	}
	return ""
}

// TokenURL links a token on the chain's block explorer.
func TokenURL(chainID, token string) string {
	if e, ok := explorers[chainID]; ok {
		return fmt.Sprintf(e.token, token)
	}
	return ""
}

// ChartURL links a token's price chart.
func ChartURL(chainID, token string) string {
	if e, ok := explorers[chainID]; ok {
		return fmt.Sprintf(e.chart, token)
	}
	return ""
}
