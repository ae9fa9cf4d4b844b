package iface

const (
	// Event bits reported by a multiplexer. Error and Hangup are always
	// deliverable no matter which bits were registered.
	EventRead   uint32 = 0x1
	EventWrite  uint32 = 0x2
	EventError  uint32 = 0x4
	EventHangup uint32 = 0x8

	ReadWriteEvents = EventRead | EventWrite
)

const (
	// WakeKey is the completion key reserved for wakeup sentinels.
	WakeKey uintptr = 1

	MaxTasks            int = 256
	DefaultTaskPoolSize int = 32
	DefaultWaitSize     int = 128
)
