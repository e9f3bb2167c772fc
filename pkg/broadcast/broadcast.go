package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"video-shot-workflow/pkg/types"
)

// GlobalBroadcastService 全局广播服务
var GlobalBroadcastService *BroadcastService

// BroadcastService 把工作流日志扇出给所有WebSocket客户端
type BroadcastService struct {
	broadcastChan chan types.MCPLog
	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client // 通道用于注销特定客户端
	shutdown      chan bool    // 通道用于关闭整个服务
	mutex         sync.Mutex
}

// Client 表示一个WebSocket客户端
type Client struct {
	Conn *websocket.Conn
	Send chan types.MCPLog // 通道用于发送消息
}

// NewBroadcastService 创建广播服务，单例
func NewBroadcastService() *BroadcastService {
	if GlobalBroadcastService != nil {
		return GlobalBroadcastService
	}
	GlobalBroadcastService = &BroadcastService{
		broadcastChan: make(chan types.MCPLog, 100),
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		shutdown:      make(chan bool),
	}
	return GlobalBroadcastService
}

// Start 启动广播服务
func (b *BroadcastService) Start(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case client := <-b.register:
			b.mutex.Lock()
			b.clients[client] = true
			b.mutex.Unlock()
		case client := <-b.unregister:
			b.mutex.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
		case <-b.shutdown:
			b.mutex.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
			return
		case message := <-b.broadcastChan:
			b.mutex.Lock()
			// 发送给所有注册的客户端
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					// 发送缓冲已满视为客户端失联，移除
					delete(b.clients, client)
					close(client.Send)
				}
			}
			b.mutex.Unlock()
		}
	}
}

// SendLog 发送日志消息
func (b *BroadcastService) SendLog(name string, msg string, timestamp string) {
	b.broadcastChan <- types.MCPLog{
		ToolName:  name,
		Type:      "log",
		Message:   msg,
		Timestamp: timestamp,
	}
}

// SendMessage 发送普通消息
func (b *BroadcastService) SendMessage(name string, msg string, timestamp string) {
	b.broadcastChan <- types.MCPLog{
		ToolName:  name,
		Type:      "message",
		Message:   msg,
		Timestamp: timestamp,
	}
}

// RegisterClient 注册客户端，返回的Client用于读取消息和注销
func (b *BroadcastService) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		Conn: conn,
		Send: make(chan types.MCPLog, 256), // 缓冲通道，避免阻塞
	}
	b.register <- client
	return client
}

// UnregisterClient 注销客户端
func (b *BroadcastService) UnregisterClient(client *Client) {
	b.unregister <- client
}

// Close 关闭广播服务
func (b *BroadcastService) Close() {
	b.shutdown <- true
}

func GetTimeStr() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
