package server

import (
	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// Option configures a Server.
type Option func(*Server)

// WithEncoding sets the text encoding applied to PVs that do not choose
// one. Use wire.RawBytes to require raw byte strings.
func WithEncoding(enc *wire.Encoding) Option {
	return func(s *Server) {
		if enc != nil {
			s.enc = enc
		}
	}
}

// WithTransport sets the sink that receives posted events of every PV
// created through the server.
func WithTransport(sink pv.EventSink) Option {
	return func(s *Server) {
		s.transport = sink
	}
}

// WithLogger sets the protocol logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}
