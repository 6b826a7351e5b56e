// Package fakestatsd is a UDP listener that records the statsd lines sent to it.
package fakestatsd

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type FakeStatsd struct {
	conn *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "localhost:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{conn: conn}
	go s.listen()
	t.Cleanup(func() { _ = s.conn.Close() })

	return s
}

func (s *FakeStatsd) Addr() string {
	return s.conn.LocalAddr().String()
}

type Metric struct {
	Name  string
	Value string
	Tags  []string
}

// Metrics returns a copy of everything received so far.
func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Metric(nil), s.metrics...)
}

// Named returns the received metrics called name.
func (s *FakeStatsd) Named(name string) []Metric {
	var out []Metric
	for _, m := range s.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func (s *FakeStatsd) listen() {
	buf := make([]byte, 10000)
	for {
		n, err := s.conn.Read(buf)
		if errors.Is(err, net.ErrClosed) {
			return
		}
		for _, line := range bytes.Split(buf[:n], []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			m := parse(string(line))
			s.mu.Lock()
			s.metrics = append(s.metrics, m)
			s.mu.Unlock()
		}
	}
}

// parse reads "name:value|type|#tag1,tag2".
func parse(raw string) Metric {
	name, rest, _ := strings.Cut(raw, ":")
	value, tags, found := strings.Cut(rest, "#")
	m := Metric{Name: name, Value: strings.TrimSuffix(value, "|")}
	if found {
		m.Tags = strings.Split(tags, ",")
	}
	return m
}
