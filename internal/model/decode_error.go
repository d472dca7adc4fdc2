package model

// DecodeError records a pool that could not be decoded.
type DecodeError struct {
	Address  string `json:"address"`
	Protocol string `json:"protocol"`
	Asset    string `json:"asset"`
	Error    string `json:"error"`
	At       string `json:"at"`
}
