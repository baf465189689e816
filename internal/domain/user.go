package domain

// Presence es la vista pública de una dirección: nombre visible y si está conectada.
type Presence struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	Online      bool   `json:"online"`
}
