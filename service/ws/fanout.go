package ws

import "github.com/DoraeChat/DoraeChat-BE-sub000/logger"

// deliverLocal hands the encoded frame to every in-process member of the
// room except excludeConnID. Delivery is a non-blocking enqueue into each
// connection's send queue; a full queue means a slow client and the frame
// is dropped for that client only. This layer promises deliver-now, not
// deliver-eventually — catch-up goes through the persistent store.
func (m *Manager) deliverLocal(roomID string, frame []byte, excludeConnID string) {
	m.mu.RLock()
	members := m.rooms[roomID]
	targets := make([]*Client, 0, len(members))
	for id, c := range members {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if !enqueue(c, frame) {
			logger.Warnf("[ws] slow client, frame dropped conn=%s room=%s", c.ConnID, roomID)
		}
	}
}

func (m *Manager) deliverAllLocal(frame []byte) {
	m.mu.RLock()
	targets := make([]*Client, 0, len(m.conns))
	for _, c := range m.conns {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if !enqueue(c, frame) {
			logger.Warnf("[ws] slow client, frame dropped conn=%s", c.ConnID)
		}
	}
}

func enqueue(c *Client, frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}
