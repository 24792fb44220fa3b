package rpc

// TurnRequest asks the daemon to resolve one instruction.
type TurnRequest struct {
	Instruction string `json:"instruction"`
}

// TurnEvent streams back progress of a turn. Type is one of the agent event
// types, "output" for executed-code output, or "error" for transport faults.
type TurnEvent struct {
	Type        string `json:"type"`
	TurnID      string `json:"turn_id,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	State       string `json:"state,omitempty"`
	Code        string `json:"code,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Message     string `json:"message,omitempty"`
	Status      string `json:"status,omitempty"`
	Stream      string `json:"stream,omitempty"` // stdout|stderr, output events only
	Data        string `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TurnStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry the turn; later messages may only cancel it.
type TurnStreamRequest struct {
	Turn   *TurnRequest `json:"turn,omitempty"`
	Cancel bool         `json:"cancel,omitempty"`
}
