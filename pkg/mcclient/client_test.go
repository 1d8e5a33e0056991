// pkg/mcclient/client_test.go
package mcclient

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"plc-monitor/internal/driver/melsec"
)

// memoryPLC serves word reads from an in-memory D register table
type memoryPLC struct {
	ln   net.Listener
	port int

	mu    sync.Mutex
	words map[uint32]uint16
	conns []net.Conn
}

func newMemoryPLC(t *testing.T, words map[uint32]uint16) *memoryPLC {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen err=%v", err)
	}
	p := &memoryPLC{ln: ln, port: ln.Addr().(*net.TCPAddr).Port, words: words}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			p.mu.Lock()
			p.conns = append(p.conns, c)
			p.mu.Unlock()
			go p.serve(c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		p.mu.Lock()
		for _, c := range p.conns {
			c.Close()
		}
		p.mu.Unlock()
	})
	return p
}

func (p *memoryPLC) serve(c net.Conn) {
	req := make([]byte, melsec.ReadWordRequestLen)
	for {
		if _, err := io.ReadFull(c, req); err != nil {
			return
		}
		offset := uint32(req[15]) | uint32(req[16])<<8 | uint32(req[17])<<16
		p.mu.Lock()
		value := p.words[offset]
		p.mu.Unlock()
		if _, err := c.Write(melsec.EncodeWordResponse(value)); err != nil {
			return
		}
	}
}

func (p *memoryPLC) set(offset uint32, value uint16) {
	p.mu.Lock()
	p.words[offset] = value
	p.mu.Unlock()
}

func TestClient_Sequence(t *testing.T) {
	plc := newMemoryPLC(t, map[uint32]uint16{100: 100, 200: 0})

	c := New("127.0.0.1", plc.port,
		WithPollInterval(10*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	)
	if err := c.SetTarget("D100", 100); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer func() {
		c.Stop()
		<-c.Done()
	}()

	if !c.WaitTimeout(2 * time.Second) {
		t.Fatalf("D100 never matched")
	}
	if c.CurrentValue() != 100 {
		t.Fatalf("CurrentValue=%d want 100", c.CurrentValue())
	}

	if err := c.SetTarget("D200", 200); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	if c.WaitTimeout(100 * time.Millisecond) {
		t.Fatalf("D200 matched before it changed")
	}
	plc.set(200, 200)
	if !c.WaitTimeout(2 * time.Second) {
		t.Fatalf("D200 never matched")
	}
	if c.CurrentValue() != 200 {
		t.Fatalf("CurrentValue=%d want 200", c.CurrentValue())
	}

	st := c.Status()
	if st.State != StateConnected || st.Address != "D200" || st.TargetValue != 200 || st.Mask != DefaultMask {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.LastMatchAt == nil || st.Engine.Triggers != 2 {
		t.Fatalf("match not reflected in status %+v", st)
	}
}

func TestClient_MaskedTarget(t *testing.T) {
	plc := newMemoryPLC(t, map[uint32]uint16{5: 0x0100})

	c := New("127.0.0.1", plc.port, WithPollInterval(10*time.Millisecond))
	if err := c.SetTargetMasked("D5", 0x0001, 0x000F); err != nil {
		t.Fatalf("SetTargetMasked err=%v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)
	plc.set(5, 0xAB01)
	if !c.WaitTimeout(2 * time.Second) {
		t.Fatalf("masked match not raised")
	}
	if c.CurrentValue() != 0xAB01 {
		t.Fatalf("CurrentValue=0x%04X", c.CurrentValue())
	}
}

func TestClient_SetTargetParseError(t *testing.T) {
	c := New("127.0.0.1", 1)
	if err := c.SetTarget("D100", 1); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	err := c.SetTarget("D12X", 1)
	if !errors.Is(err, melsec.ErrMalformedAddress) {
		t.Fatalf("expected ErrMalformedAddress, got %v", err)
	}
	if st := c.Status(); st.Address != "D100" {
		t.Fatalf("target replaced by a bad address: %q", st.Address)
	}
}

func TestClient_SetTargetDropsUnconsumedMatch(t *testing.T) {
	plc := newMemoryPLC(t, map[uint32]uint16{100: 100})

	c := New("127.0.0.1", plc.port, WithPollInterval(10*time.Millisecond))
	if err := c.SetTarget("D100", 100); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer func() {
		c.Stop()
		<-c.Done()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.Status().Engine.Triggers == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("D100 never matched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.SetTarget("D100", 100); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	if c.WaitTimeout(50 * time.Millisecond) {
		t.Fatalf("match raised before SetTarget survived it")
	}
}

func TestClient_IndependentStop(t *testing.T) {
	plc := newMemoryPLC(t, map[uint32]uint16{})

	a := New("127.0.0.1", plc.port, WithPollInterval(10*time.Millisecond))
	b := New("127.0.0.1", plc.port, WithPollInterval(10*time.Millisecond))
	for _, c := range []*Client{a, b} {
		if err := c.SetTarget("D0", 1); err != nil {
			t.Fatalf("SetTarget err=%v", err)
		}
		if err := c.Start(); err != nil {
			t.Fatalf("Start err=%v", err)
		}
	}
	defer b.Stop()

	a.Stop()
	a.Stop()
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatalf("stopped client did not exit")
	}
	if a.State() != StateStopped {
		t.Fatalf("a state=%s", a.State())
	}

	plc.set(0, 1)
	if !b.WaitTimeout(2 * time.Second) {
		t.Fatalf("stopping one client affected another")
	}
	if err := a.Start(); err == nil {
		t.Fatalf("restarting a stopped client should fail")
	}
}

func TestClient_Metrics(t *testing.T) {
	plc := newMemoryPLC(t, map[uint32]uint16{0x1A: 5})

	reg := prometheus.NewRegistry()
	c := New("127.0.0.1", plc.port,
		WithPollInterval(10*time.Millisecond),
		WithMetrics(reg, "plc_monitor"),
	)
	if err := c.SetTarget("ZR1A", 5); err != nil {
		t.Fatalf("SetTarget err=%v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer c.Stop()

	if !c.WaitTimeout(2 * time.Second) {
		t.Fatalf("ZR1A never matched")
	}
	n, err := testutil.GatherAndCount(reg, "plc_monitor_triggers_total", "plc_monitor_requests_total")
	if err != nil {
		t.Fatalf("gather err=%v", err)
	}
	if n != 2 {
		t.Fatalf("metric families=%d want 2", n)
	}
	if c.CurrentValue() != 5 {
		t.Fatalf("CurrentValue=%d want 5", c.CurrentValue())
	}
}
