package quote

import (
	"fmt"
	"strings"
)

type TokenKind uint8

const (
	KindStablecoin TokenKind = iota
	KindLevercoin
	KindLpToken
	KindLst
	KindExoCollateral
	KindExoLevercoin
)

// Token is one of the assets the engine quotes. Amounts are raw integers at
// Decimals places. Tokens encode as their symbol.
type Token struct {
	Symbol   string
	Mint     string
	Decimals int
	Kind     TokenKind
}

var (
	HYUSD   = Token{Symbol: "hyUSD", Mint: "5YMkXAYccHSGnHn9nob9xEvv6Pvka9DZWH7nTbotTu9E", Decimals: 6, Kind: KindStablecoin}
	XSOL    = Token{Symbol: "xSOL", Mint: "4sWNB8zGWHkh6UnmwiEtzNxL4XrN7uK9tosbESbJFfVs", Decimals: 6, Kind: KindLevercoin}
	SHYUSD  = Token{Symbol: "shyUSD", Mint: "HnnGv3HrSqjRpgdFmx7vQGjntNEoex1SU4e9Lxcxuihz", Decimals: 6, Kind: KindLpToken}
	JITOSOL = Token{Symbol: "JitoSOL", Mint: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Decimals: 9, Kind: KindLst}
	HYLOSOL = Token{Symbol: "hyloSOL", Mint: "hy1oXYgrBW6PVcJ4s6s2FKavRdwgWTXdfE69AxT7kPT", Decimals: 9, Kind: KindLst}
	// Exogenous pair legs. Their mints come from the snapshot.
	WBTC = Token{Symbol: "WBTC", Decimals: 9, Kind: KindExoCollateral}
	XBTC = Token{Symbol: "xBTC", Decimals: 6, Kind: KindExoLevercoin}
)

var registry = []Token{HYUSD, XSOL, SHYUSD, JITOSOL, HYLOSOL, WBTC, XBTC}

// Tokens lists every known token.
func Tokens() []Token {
	out := make([]Token, len(registry))
	copy(out, registry)
	return out
}

// Lsts lists the liquid staking tokens accepted as collateral.
func Lsts() []Token { return []Token{JITOSOL, HYLOSOL} }

// LookupToken resolves a symbol (case-insensitive) or a mint address.
func LookupToken(key string) (Token, error) {
	for _, t := range registry {
		if strings.EqualFold(t.Symbol, key) || (t.Mint != "" && t.Mint == key) {
			return t, nil
		}
	}
	return Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, key)
}

func (t Token) String() string { return t.Symbol }

func (t Token) MarshalText() ([]byte, error) { return []byte(t.Symbol), nil }

func (t *Token) UnmarshalText(b []byte) error {
	tok, err := LookupToken(string(b))
	if err != nil {
		return err
	}
	*t = tok
	return nil
}
