package ws

import (
	"net/http"
	"time"

	"github.com/okian/yecs/pkg/logger"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultReadLimit        = 1 << 20
	defaultFrameBuffer      = 64
)

type settings struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	pingInterval     time.Duration
	readLimit        int64
	frameBuffer      int
	header           http.Header
	log              logger.Logger
}

func defaults() settings {
	return settings{
		handshakeTimeout: defaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		pingInterval:     defaultPingInterval,
		readLimit:        defaultReadLimit,
		frameBuffer:      defaultFrameBuffer,
		header:           http.Header{},
	}
}

// pongWait is how long a silent peer is tolerated.
func (s settings) pongWait() time.Duration { return s.pingInterval * 5 / 2 }

// Option configures dialers and upgraded connections.
type Option func(*settings)

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithReadLimit caps inbound frame size.
func WithReadLimit(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithHeader adds a handshake header.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		s.header.Add(key, value)
	}
}

// WithLogger overrides the connection logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}
