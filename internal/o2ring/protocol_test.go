package o2ring

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/o2ring/internal/reading"
)

func encodeResponse(status byte, data []byte) []byte {
	b := make([]byte, headerLen)
	b[0] = respHeader
	b[1] = status
	b[2] = ^status
	binary.LittleEndian.PutUint16(b[5:7], uint16(len(data)))
	b = append(b, data...)
	return append(b, CRC8(b))
}

// spo2 96, hr 99, battery 85, charging, motion 1, strength 34
var sensorPayload = []byte{96, 99, 0, 0, 0, 0, 0, 85, 1, 1, 34, 0, 0}

func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0xF4), CRC8([]byte("123456789")))
	assert.Equal(t, byte(0x00), CRC8(nil))
}

func TestEncodeCommand(t *testing.T) {
	b := EncodeCommand(CmdReadSensors, 0, nil)
	require.Len(t, b, 8)
	assert.Equal(t, []byte{0xAA, 0x17, 0xE8, 0, 0, 0, 0}, b[:7])
	assert.Equal(t, CRC8(b[:7]), b[7])

	b = EncodeCommand(0x03, 0x0102, []byte{9, 8})
	assert.Equal(t, []byte{0xAA, 0x03, 0xFC, 0x02, 0x01, 0x02, 0x00, 9, 8}, b[:9])
}

func TestAssemblerSplitChunks(t *testing.T) {
	frame := encodeResponse(0, sensorPayload)
	var a Assembler

	assert.Empty(t, a.Write([]byte{0x01, 0x02}))
	assert.Empty(t, a.Write(frame[:5]))
	assert.Empty(t, a.Write(frame[5:12]))
	frames := a.Write(frame[12:])
	require.Len(t, frames, 1)
	assert.Equal(t, sensorPayload, frames[0].Data)
	assert.Equal(t, byte(0), frames[0].Status)
}

func TestAssemblerTwoFramesOneChunk(t *testing.T) {
	var a Assembler
	chunk := append(encodeResponse(0, []byte{1, 2}), encodeResponse(0, []byte{3})...)
	frames := a.Write(chunk)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{1, 2}, frames[0].Data)
	assert.Equal(t, []byte{3}, frames[1].Data)
}

func TestAssemblerBadCRC(t *testing.T) {
	var a Assembler
	bad := encodeResponse(0, sensorPayload)
	bad[len(bad)-1] ^= 0xFF
	good := encodeResponse(0, []byte{7})

	frames := a.Write(append(bad, good...))
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{7}, frames[0].Data)
}

func TestDecodeSensors(t *testing.T) {
	s, err := DecodeSensors(sensorPayload)
	require.NoError(t, err)
	assert.Equal(t, SensorData{SpO2: 96, HeartRate: 99, Battery: 85, Charging: 1, Motion: 1, PulseStrength: 34}, s)
	assert.Equal(t, reading.ChargeCharging, s.Charge())
	assert.Equal(t, reading.Reading{DeviceID: "0098", SpO2: 96, HeartRate: 99, PerfusionIndex: 34, Motion: 1, BatteryPercent: 85}, s.Reading("0098"))

	_, err = DecodeSensors(sensorPayload[:10])
	assert.Error(t, err)
}

func TestConnReadSensors(t *testing.T) {
	var c *Conn
	c = newConn(func(b []byte) error {
		if b[1] != CmdReadSensors {
			return errors.New("unexpected command")
		}
		frame := encodeResponse(0, sensorPayload)
		go func() {
			c.handleNotification(frame[:4])
			c.handleNotification(frame[4:])
		}()
		return nil
	})

	s, err := c.ReadSensors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 96, s.SpO2)
	assert.Equal(t, 34, s.PulseStrength)
}

func TestConnReadSensorsTimeout(t *testing.T) {
	c := newConn(func([]byte) error { return nil })
	c.timeout = 20 * time.Millisecond
	_, err := c.ReadSensors(context.Background())
	assert.Error(t, err)
}

func TestConnReadSensorsRejected(t *testing.T) {
	var c *Conn
	c = newConn(func([]byte) error {
		go c.handleNotification(encodeResponse(1, nil))
		return nil
	})
	_, err := c.ReadSensors(context.Background())
	assert.ErrorContains(t, err, "status 0x01")
}
