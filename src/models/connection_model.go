package models

// ConnectionStatus is the state of a pair as seen by one of its members
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusPending      ConnectionStatus = "pending"
	ConnectionStatusReceived     ConnectionStatus = "received"
	ConnectionStatusNotConnected ConnectionStatus = "not_connected"
)

type RequestState string

const (
	RequestOutgoing RequestState = "outgoing"
	RequestIncoming RequestState = "incoming"
)

// ConnectionRequest is reconstructed from the pending sets, never stored
type ConnectionRequest struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	State RequestState `json:"state"`
}

// PendingRequests groups a user's requests by direction
type PendingRequests struct {
	Incoming []ConnectionRequest `json:"incoming"`
	Outgoing []ConnectionRequest `json:"outgoing"`
}

// RequestsOf derives the pending requests recorded on u
func RequestsOf(u *User) PendingRequests {
	reqs := PendingRequests{
		Incoming: make([]ConnectionRequest, 0, len(u.PendingIncoming)),
		Outgoing: make([]ConnectionRequest, 0, len(u.PendingOutgoing)),
	}
	for _, from := range u.PendingIncoming {
		reqs.Incoming = append(reqs.Incoming, ConnectionRequest{From: from, To: u.Id, State: RequestIncoming})
	}
	for _, to := range u.PendingOutgoing {
		reqs.Outgoing = append(reqs.Outgoing, ConnectionRequest{From: u.Id, To: to, State: RequestOutgoing})
	}
	return reqs
}
