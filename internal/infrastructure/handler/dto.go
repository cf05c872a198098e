package handler

// ExchangeRequest represents the request body for the exchange endpoint
type ExchangeRequest struct {
	ExchangeDate string   `json:"exchange_date" validate:"required,datetime=2006-01-02"`
	InCurrency   string   `json:"in_currency" validate:"required,oneof=USD EUR CHF JPY PLN"`
	OutCurrency  string   `json:"out_currency" validate:"required,oneof=USD EUR CHF JPY PLN,nefield=InCurrency"`
	Amount       *float64 `json:"amount" validate:"required,gte=0"`
}

// ExchangeResponse represents the response for the exchange endpoint
type ExchangeResponse struct {
	Amount float64 `json:"amount"`
}

// RateResponse represents the response for the rate lookup endpoint
type RateResponse struct {
	Currency string `json:"currency"`
	Date     string `json:"date"`
	Rate     string `json:"rate"`
}

// HealthResponse represents the response for the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}
