// Package o2ring speaks the Viatom/Wellue O2Ring BLE protocol: command
// framing, response reassembly and decoding of live sensor frames.
package o2ring

import (
	"encoding/binary"
	"fmt"

	"github.com/luki/o2ring/internal/reading"
)

const (
	cmdHeader  = 0xAA
	respHeader = 0x55
	headerLen  = 7

	// CmdReadSensors asks the ring for its current live values.
	CmdReadSensors = 0x17

	sensorDataLen = 11
)

var crcTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		c := byte(i)
		for b := 0; b < 8; b++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x07
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC8 computes the frame checksum (poly 0x07, init 0).
func CRC8(data []byte) byte {
	var c byte
	for _, b := range data {
		c = crcTable[c^b]
	}
	return c
}

// EncodeCommand builds a command frame.
func EncodeCommand(cmd byte, block uint16, payload []byte) []byte {
	b := make([]byte, headerLen, headerLen+len(payload)+1)
	b[0] = cmdHeader
	b[1] = cmd
	b[2] = ^cmd
	binary.LittleEndian.PutUint16(b[3:5], block)
	binary.LittleEndian.PutUint16(b[5:7], uint16(len(payload)))
	b = append(b, payload...)
	return append(b, CRC8(b))
}

// Frame is one checked response from the ring.
type Frame struct {
	Status byte
	Block  uint16
	Data   []byte
}

// Assembler reassembles response frames from notification chunks.
type Assembler struct {
	buf []byte
}

// Write feeds a notification payload and returns every frame it completes.
// Bytes before a header and frames with a bad checksum are discarded.
func (a *Assembler) Write(chunk []byte) []Frame {
	a.buf = append(a.buf, chunk...)

	var frames []Frame
	for {
		start := indexByte(a.buf, respHeader)
		if start < 0 {
			a.buf = a.buf[:0]
			return frames
		}
		a.buf = a.buf[start:]
		if len(a.buf) < headerLen {
			return frames
		}
		if a.buf[2] != ^a.buf[1] {
			a.buf = a.buf[1:]
			continue
		}

		n := int(binary.LittleEndian.Uint16(a.buf[5:7]))
		total := headerLen + n + 1
		if len(a.buf) < total {
			return frames
		}

		raw := a.buf[:total]
		if CRC8(raw[:total-1]) != raw[total-1] {
			a.buf = a.buf[1:]
			continue
		}

		data := make([]byte, n)
		copy(data, raw[headerLen:headerLen+n])
		frames = append(frames, Frame{
			Status: raw[1],
			Block:  binary.LittleEndian.Uint16(raw[3:5]),
			Data:   data,
		})
		a.buf = a.buf[total:]
	}
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// SensorData is the decoded payload of a read-sensors response.
type SensorData struct {
	SpO2          int
	HeartRate     int
	Battery       int
	Charging      int // 0 none, 1 charging, 2 charged
	Motion        int
	PulseStrength int
}

// DecodeSensors decodes read-sensors response data.
func DecodeSensors(data []byte) (SensorData, error) {
	if len(data) < sensorDataLen {
		return SensorData{}, fmt.Errorf("sensor frame too short: %d bytes", len(data))
	}
	return SensorData{
		SpO2:          int(data[0]),
		HeartRate:     int(data[1]),
		Battery:       int(data[7]),
		Charging:      int(data[8]),
		Motion:        int(data[9]),
		PulseStrength: int(data[10]),
	}, nil
}

// Reading converts the sensor data to a Reading for the given device id.
// Pulse strength is what the ring reports in place of a perfusion index.
func (s SensorData) Reading(deviceID string) reading.Reading {
	return reading.Reading{
		DeviceID:       deviceID,
		SpO2:           s.SpO2,
		HeartRate:      s.HeartRate,
		PerfusionIndex: s.PulseStrength,
		Motion:         s.Motion,
		BatteryPercent: s.Battery,
	}
}

// Charge maps the raw charging byte.
func (s SensorData) Charge() reading.Charge {
	switch s.Charging {
	case 1:
		return reading.ChargeCharging
	case 2:
		return reading.ChargeFull
	default:
		return reading.ChargeNone
	}
}
