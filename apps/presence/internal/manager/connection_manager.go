package manager

import "sync"

// ConnectionManager 管理所有在线 WebSocket 连接。
// 匿名配对场景下一个用户同时只保留一条连接：
// 同一 user_uuid 重复接入时，新连接替换旧连接。
type ConnectionManager struct {
	mu       sync.RWMutex
	byUser   map[string]*Client
	shutdown bool
}

// NewConnectionManager 创建连接管理器实例。
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byUser: make(map[string]*Client),
	}
}

// Register 注册一个用户连接。
// 返回值 replaced 表示被新连接替换掉的旧连接（如果存在）。
// 调用方应主动关闭 replaced，确保同一用户最多一个活跃连接。
func (m *ConnectionManager) Register(client *Client) (replaced *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	if old, ok := m.byUser[client.UserUUID()]; ok && old != client {
		replaced = old
	}
	m.byUser[client.UserUUID()] = client
	return replaced
}

// Unregister 注销一个连接。
// 只有当 map 中当前连接与入参完全一致时才删除，防止并发替换时误删新连接。
func (m *ConnectionManager) Unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byUser[client.UserUUID()]
	if !ok || current != client {
		return
	}
	delete(m.byUser, client.UserUUID())
}

// SendToUser 向指定用户的在线连接发送消息。
// 返回 false 表示用户不在本实例上，或写队列不可用。
func (m *ConnectionManager) SendToUser(userUUID string, msg []byte) bool {
	m.mu.RLock()
	client := m.byUser[userUUID]
	m.mu.RUnlock()
	if client == nil {
		return false
	}
	return client.Enqueue(msg)
}

// Count 返回当前在线连接数。
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// Shutdown 关闭全部连接并阻止后续注册。
// 用于进程优雅退出阶段，确保不再接收新连接并尽快释放资源。
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true

	clients := make([]*Client, 0, len(m.byUser))
	for _, client := range m.byUser {
		clients = append(clients, client)
	}
	m.byUser = make(map[string]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
