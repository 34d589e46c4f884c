package realtime

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read. Image messages travel inline.
	maxFrameBytes = 8 << 20

	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 8

	wsDefaultWriteTimeout = 5 * time.Second
	wsCloseGrace          = 1 * time.Second
	wsMaxPingFailures     = 3
)

const (
	// Heartbeat defaults.
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Message poll cadence per (user, room) watcher.
	pollInterval = 3 * time.Second

	// message.send limiter: sustained rate and burst, per connection.
	sendRatePerSec = 2.0
	sendBurst      = 5

	// Frame limiter: any client event. Exceeding it closes the connection.
	frameRatePerSec = 12.0
	frameBurst      = 120
)
