package dto

type PairingResponse struct {
	State       string `json:"state"`
	PairingCode string `json:"pairing_code,omitempty"`
	LinkID      string `json:"link_id,omitempty"`
	ClaimURL    string `json:"claim_url,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}
