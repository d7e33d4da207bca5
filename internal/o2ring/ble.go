package o2ring

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	serviceUUIDStr = "14839ac4-7d7e-415c-9a42-167340cf2339"
	writeUUIDStr   = "8b00ace7-eb0b-49b0-bbe9-9aee0a26e1a3"
	notifyUUIDStr  = "0734594a-a8e7-4b1a-a6b1-cd5243059a57"

	defaultResponseTimeout = 3 * time.Second
)

var (
	serviceUUID = ble.MustParse(serviceUUIDStr)
	writeUUID   = ble.MustParse(writeUUIDStr)
	notifyUUID  = ble.MustParse(notifyUUIDStr)
)

// ErrNotFound is returned by Scan when no ring advertised during the scan.
var ErrNotFound = errors.New("no oximeter found")

// Found describes an advertising ring.
type Found struct {
	Addr     string
	Name     string
	Model    string
	DeviceID string
}

// Scanner discovers rings by advertised name.
type Scanner struct {
	ScanDuration time.Duration
	Retries      int
	NamePrefix   string // empty accepts every known model
}

// Scan looks for rings, retrying on BLE errors.
func (s *Scanner) Scan(ctx context.Context) ([]Found, error) {
	retries := s.Retries
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for i := 0; i < retries; i++ {
		found, err := s.scan(ctx)
		if err == nil {
			return found, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.WithField("attempt", i+1).Warnf("retrying error in scan: %s", err)
	}
	return nil, errors.Wrap(lastErr, "all retries to scan failed")
}

func (s *Scanner) scan(ctx context.Context) ([]Found, error) {
	sctx, cancel := context.WithTimeout(ctx, s.ScanDuration)
	defer cancel()

	ads, err := ble.Find(sctx, false, s.accepts)
	if err != nil {
		switch errors.Cause(err) {
		case context.DeadlineExceeded:
		case context.Canceled:
			return nil, errors.Wrap(err, "scan for devices cancelled")
		default:
			return nil, errors.Wrap(err, "failed to scan for devices")
		}
	}

	seen := map[string]bool{}
	var found []Found
	for _, a := range ads {
		addr := a.Addr().String()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		name := a.LocalName()
		found = append(found, Found{
			Addr:     addr,
			Name:     name,
			Model:    ModelName(name),
			DeviceID: DeviceID(name),
		})
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *Scanner) accepts(a ble.Advertisement) bool {
	return a.Connectable() && s.matchName(a.LocalName())
}

func (s *Scanner) matchName(name string) bool {
	if ModelName(name) == "" {
		return false
	}
	if s.NamePrefix == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), strings.ToLower(s.NamePrefix))
}

// Conn is a GATT session with one ring.
type Conn struct {
	write   func([]byte) error
	timeout time.Duration

	mu     sync.Mutex
	asm    Assembler
	frames chan Frame

	cln ble.Client
}

func newConn(write func([]byte) error) *Conn {
	return &Conn{
		write:   write,
		timeout: defaultResponseTimeout,
		frames:  make(chan Frame, 4),
	}
}

// Connect opens a GATT connection to addr and subscribes to notifications.
func Connect(ctx context.Context, addr string) (*Conn, error) {
	filter := func(a ble.Advertisement) bool {
		return strings.EqualFold(a.Addr().String(), addr)
	}

	log.WithField("addr", addr).Debug("connecting to device")
	cln, err := ble.Connect(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to ble")
	}

	c, err := setup(cln)
	if err != nil {
		_ = cln.CancelConnection()
		return nil, err
	}
	return c, nil
}

func setup(cln ble.Client) (*Conn, error) {
	services, err := cln.DiscoverServices([]ble.UUID{serviceUUID})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover services")
	}
	if len(services) == 0 {
		return nil, errors.New("did not find oximeter service")
	}

	chars, err := cln.DiscoverCharacteristics([]ble.UUID{writeUUID, notifyUUID}, services[0])
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover characteristics")
	}

	var writeChar, notifyChar *ble.Characteristic
	for _, ch := range chars {
		switch {
		case ch.UUID.Equal(writeUUID):
			writeChar = ch
		case ch.UUID.Equal(notifyUUID):
			notifyChar = ch
		}
	}
	if writeChar == nil || notifyChar == nil {
		return nil, errors.New("did not find expected characteristics")
	}
	if _, err := cln.DiscoverDescriptors(nil, notifyChar); err != nil {
		return nil, errors.Wrap(err, "couldn't discover descriptors")
	}

	c := newConn(func(b []byte) error {
		return cln.WriteCharacteristic(writeChar, b, true)
	})
	c.cln = cln
	if err := cln.Subscribe(notifyChar, false, c.handleNotification); err != nil {
		return nil, errors.Wrap(err, "couldn't subscribe to notifications")
	}
	return c, nil
}

func (c *Conn) handleNotification(b []byte) {
	c.mu.Lock()
	frames := c.asm.Write(b)
	c.mu.Unlock()

	for _, f := range frames {
		select {
		case c.frames <- f:
		default:
			log.Debug("dropping unsolicited frame")
		}
	}
}

// ReadSensors requests and decodes one live sample.
func (c *Conn) ReadSensors(ctx context.Context) (SensorData, error) {
	c.drain()
	if err := c.write(EncodeCommand(CmdReadSensors, 0, nil)); err != nil {
		return SensorData{}, errors.Wrap(err, "failed to write command")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return SensorData{}, ctx.Err()
	case <-timer.C:
		return SensorData{}, errors.New("timed out waiting for sensor frame")
	case f := <-c.frames:
		if f.Status != 0 {
			return SensorData{}, errors.Errorf("device rejected command: status 0x%02x", f.Status)
		}
		return DecodeSensors(f.Data)
	}
}

func (c *Conn) drain() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

// Disconnected is closed when the ring drops the connection.
func (c *Conn) Disconnected() <-chan struct{} {
	if c.cln == nil {
		return nil
	}
	return c.cln.Disconnected()
}

// Close cancels the connection.
func (c *Conn) Close() error {
	if c.cln == nil {
		return nil
	}
	return c.cln.CancelConnection()
}
