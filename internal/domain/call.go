package domain

// CallState es el estado de la negociación de una llamada para un par ordenado (caller, callee).
type CallState string

const (
	CallIdle    CallState = "idle"
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
	CallEnded   CallState = "ended"
)

// Live indica si la llamada está sonando o activa.
func (s CallState) Live() bool {
	return s == CallRinging || s == CallActive
}

// CallPair identifica una llamada por quien llama y quien recibe.
type CallPair struct {
	Caller string
	Callee string
}

// Reversed intercambia caller y callee.
func (p CallPair) Reversed() CallPair {
	return CallPair{Caller: p.Callee, Callee: p.Caller}
}
