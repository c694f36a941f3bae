package session

import "net"

// wsConn is the slice of *websocket.Conn the session state machine depends
// on. Defining it as an interface lets tests drive the state machine
// without a real network socket.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	Close() error
	RemoteAddr() net.Addr
}
