package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexFloat accepts a JSON number, a numeric string, or an empty string/null (0).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt is flexFloat truncated to an integer.
type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

// flexString accepts a JSON string or number and keeps its text.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

type wireSignal struct {
	ChainID      flexString `json:"chainId"`
	TokenAddress string     `json:"tokenAddress"`
	TokenSymbol  string     `json:"tokenSymbol"`
	BatchID      flexString `json:"batchId"`
	BatchIndex   flexInt    `json:"batchIndex"`
	Timestamp    flexInt    `json:"timestamp"`
	Price        flexFloat  `json:"price"`
	MarketCap    flexFloat  `json:"marketCap"`
	Volume       flexFloat  `json:"volume"`
	WalletCount  flexInt    `json:"walletCount"`
}

type wireDetail struct {
	Wallets []wireWallet `json:"wallets"`
}

type wireWallet struct {
	WalletAddress string    `json:"walletAddress"`
	PnL           flexFloat `json:"pnl"`
	ROI           flexFloat `json:"roi"`
	WinRate       flexFloat `json:"winRate"`
}

type wireHistory struct {
	Tokens  []wireTrade `json:"tokens"`
	HasMore bool        `json:"hasMore"`
}

type wireTrade struct {
	TokenAddress   string    `json:"tokenAddress"`
	TokenSymbol    string    `json:"tokenSymbol"`
	AvgBuyPrice    flexFloat `json:"avgBuyPrice"`
	BuyTxCount     flexInt   `json:"buyTxCount"`
	SellTxCount    flexInt   `json:"sellTxCount"`
	LastActiveTime flexInt   `json:"lastActiveTime"`
	RealizedPnL    flexFloat `json:"realizedPnl"`
}

type wireSecurity struct {
	Status    string    `json:"status"`
	RiskScore flexFloat `json:"riskScore"`
	Flags     []string  `json:"flags"`
}
