package spatialanalyst

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketServer рассылает отчёты об угрозах подключённым клиентам.
type WebSocketServer struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
	logger  *zap.Logger
	metrics *Metrics
}

func NewWebSocketServer(logger *zap.Logger, metrics *Metrics) *WebSocketServer {
	return &WebSocketServer{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
		metrics: metrics,
	}
}

func (w *WebSocketServer) HandleWebSocket(wr http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(wr, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	w.mutex.Lock()
	w.clients[conn] = true
	w.metrics.WSClients.Set(float64(len(w.clients)))
	w.mutex.Unlock()

	// Поток только на запись; чтение нужно, чтобы заметить отключение.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			w.logger.Debug("threat stream client disconnected", zap.Error(err))
			w.remove(conn)
			return
		}
	}
}

func (w *WebSocketServer) remove(conn *websocket.Conn) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	delete(w.clients, conn)
	w.metrics.WSClients.Set(float64(len(w.clients)))
}

func (w *WebSocketServer) BroadcastMessage(message []byte) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for client := range w.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			w.logger.Warn("threat stream write failed", zap.Error(err))
			client.Close()
			delete(w.clients, client)
		}
	}
	w.metrics.WSClients.Set(float64(len(w.clients)))
}

func (w *WebSocketServer) BroadcastLoop(ctx context.Context, broadcast <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-broadcast:
			w.BroadcastMessage(message)
		}
	}
}

// CloseAll закрывает все соединения при остановке сервиса.
func (w *WebSocketServer) CloseAll() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for client := range w.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
		client.Close()
		delete(w.clients, client)
	}
	w.metrics.WSClients.Set(0)
}
