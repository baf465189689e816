package domain

import "time"

// ConnID identifica una conexión del transporte en tiempo real.
type ConnID string

// UserSession representa una dirección con sesión activa y la conexión que la sirve.
type UserSession struct {
	Address     string    `json:"address"`
	Conn        ConnID    `json:"-"`
	DisplayName string    `json:"displayName"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	LoggedInAt  time.Time `json:"loggedInAt"`
}

// Presence devuelve la vista pública de la sesión.
func (s UserSession) Presence() Presence {
	return Presence{Address: s.Address, DisplayName: s.DisplayName, Online: true}
}

// Conn es la ranura de identidad que el transporte asocia a cada conexión.
// La dirección queda vacía hasta que la conexión completa el login.
type Conn interface {
	ID() ConnID
	Identity() string
	SetIdentity(address string)
}
