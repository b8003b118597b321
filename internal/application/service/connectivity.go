package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is anything whose reachability can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor turns periodic reachability probes of the remote store
// into online/offline transitions. A manual override, when set, replaces the
// probe result.
type ConnectivityMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger

	mu        sync.RWMutex
	online    bool
	known     bool
	override  *bool
	lastProbe time.Time
	listeners []func(ctx context.Context, online bool)
}

// NewConnectivityMonitor creates a monitor probing p every interval
func NewConnectivityMonitor(p Pinger, interval time.Duration, log logrus.FieldLogger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &ConnectivityMonitor{pinger: p, interval: interval, timeout: timeout, log: log}
}

// OnTransition registers fn to run on every change of state, including the
// first probe result. Listeners run on the probing goroutine.
func (m *ConnectivityMonitor) OnTransition(fn func(ctx context.Context, online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Online reports the last known state. Before the first probe it is false.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// ConnectivityState is the monitor's view for status endpoints
type ConnectivityState struct {
	Online     bool      `json:"online"`
	Overridden bool      `json:"overridden"`
	LastProbe  time.Time `json:"last_probe"`
}

// State returns the current connectivity state
func (m *ConnectivityMonitor) State() ConnectivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ConnectivityState{Online: m.online, Overridden: m.override != nil, LastProbe: m.lastProbe}
}

// Probe checks reachability now and publishes any transition
func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	m.mu.RLock()
	override := m.override
	m.mu.RUnlock()

	online := false
	if override != nil {
		online = *override
	} else {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.pinger.Ping(pctx)
		cancel()
		online = err == nil
		if err != nil {
			m.log.WithFields(logrus.Fields{"module": "connectivity"}).Debug("remote probe failed: " + err.Error())
		}
	}

	m.set(ctx, online)
	return online
}

// SetOverride forces the state (nil returns to probing) and applies it at once
func (m *ConnectivityMonitor) SetOverride(ctx context.Context, online *bool) bool {
	m.mu.Lock()
	m.override = online
	m.mu.Unlock()
	return m.Probe(ctx)
}

func (m *ConnectivityMonitor) set(ctx context.Context, online bool) {
	m.mu.Lock()
	m.lastProbe = time.Now()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	listeners := append([]func(context.Context, bool){}, m.listeners...)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.WithFields(logrus.Fields{"module": "connectivity", "online": online}).Info("connectivity changed")
	for _, fn := range listeners {
		fn(ctx, online)
	}
}

// Run probes immediately and then on every interval until ctx is done
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
