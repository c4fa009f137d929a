package funding

// CardInRequest captures card data to fund a party account.
type CardInRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	Amount     int64  `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// CardOutRequest captures withdrawal details to push funds to a card.
type CardOutRequest struct {
	CardNumber string `json:"card_number"`
	Amount     int64  `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// FundingResponse represents the API response for card funding actions.
type FundingResponse struct {
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
	Balance           int64  `json:"balance"`
	AcquirerReference string `json:"acquirer_reference"`
}
