package websocket

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type IncomingMessage struct {
	From   string      `json:"from"`
	ConnID string      `json:"connId"`
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
}
