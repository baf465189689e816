package domain

// Message es una entrada inmutable del historial entre dos direcciones.
type Message struct {
	ID        string `json:"id,omitempty"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}
