package stream

import "time"

// Frame is one immutable unit of acquired data. It is produced once by
// a driver, stamped with a device-local sequence number, and shared
// read-only across every subscriber buffer it is pushed into.
type Frame struct {
	Device    string         `json:"device"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Format    string         `json:"format"`
	Meta      map[string]any `json:"meta,omitempty"`
	Data      []byte         `json:"-"`
}
