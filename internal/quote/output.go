package quote

// OperationOutput is the result of one quoted operation. Amounts are raw
// integers at the decimals of the token they are denominated in: InAmount
// in the pair's input token, OutAmount in its output token, and the fee
// fields in FeeMint.
type OperationOutput struct {
	InAmount  uint64 `json:"in_amount"`
	OutAmount uint64 `json:"out_amount"`
	FeeAmount uint64 `json:"fee_amount"`
	FeeMint   Token  `json:"fee_mint"`
	// FeeBase is the amount the fee was taken from.
	FeeBase uint64 `json:"fee_base"`
}
