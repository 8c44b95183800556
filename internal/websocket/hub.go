package websocket

import (
	"log"
)

// Hub 所有在线连接的登记处。
// 一个用户可以同时开多个连接（多开标签页），按 userID 扇出。
type Hub struct {
	clients    map[string]*Client            // connID -> client
	byUser     map[string]map[string]*Client // userID -> connID -> client
	register   chan *Client
	unregister chan *Client
	sendUser   chan userReq
	sendConn   chan connReq
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	// OnDisconnect 连接断开时回调（session 清理挂这里，main 里接线）
	OnDisconnect func(userID, connID string)
	quit         chan struct{}
}

type userReq struct {
	UserID  string
	Message OutgoingMessage
}

type connReq struct {
	ConnID  string
	Message OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		byUser:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sendUser:   make(chan userReq, 64),
		sendConn:   make(chan connReq, 64),
		incoming:   make(chan IncomingMessage, 64),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {

	log.Println("Hub started")

	for {
		select {
		case c := <-h.register:
			h.clients[c.ConnID] = c
			if _, ok := h.byUser[c.UserID]; !ok {
				h.byUser[c.UserID] = make(map[string]*Client)
			}
			h.byUser[c.UserID][c.ConnID] = c
			log.Printf("Hub.register -> %s/%s (当前连接数: %d)", c.UserID, c.ConnID, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c.ConnID]; ok {
				delete(h.clients, c.ConnID)
				delete(h.byUser[c.UserID], c.ConnID)
				if len(h.byUser[c.UserID]) == 0 {
					delete(h.byUser, c.UserID)
				}
				close(c.Send)
				log.Printf("Hub.unregister -> %s/%s (当前连接数: %d)", c.UserID, c.ConnID, len(h.clients))
				if h.OnDisconnect != nil {
					// 清理逻辑会反过来调 coordinator，别占着 Hub 的循环
					go h.OnDisconnect(c.UserID, c.ConnID)
				}
			}

		case req := <-h.sendUser:
			for _, client := range h.byUser[req.UserID] {
				select {
				case client.Send <- req.Message:
				default:
					// 慢连接直接丢，通知是尽力而为
				}
			}

		case req := <-h.sendConn:
			if client, ok := h.clients[req.ConnID]; ok {
				select {
				case client.Send <- req.Message:
				default:
				}
			}

		case req := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(req)
			}

		case <-h.quit:
			for _, c := range h.clients {
				close(c.Send)
			}
			return
		}
	}
}

// Notify 给某个用户的所有连接推事件（session.Notifier / openseek.Notifier 实现）
func (h *Hub) Notify(userID, eventName string, data map[string]any) {
	select {
	case h.sendUser <- userReq{UserID: userID, Message: OutgoingMessage{Event: eventName, Data: data}}:
	case <-h.quit:
	}
}

// SendToConn 指定连接推送
func (h *Hub) SendToConn(connID string, msg OutgoingMessage) {
	select {
	case h.sendConn <- connReq{ConnID: connID, Message: msg}:
	case <-h.quit:
	}
}

func (h *Hub) Close() {
	close(h.quit)
}
