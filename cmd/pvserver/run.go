package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap/zapcore"

	"github.com/chanaccess/cas-go/cmd/pvserver/interactive"
	"github.com/chanaccess/cas-go/internal/logger"
	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pvdb"
	"github.com/chanaccess/cas-go/pkg/server"
	"github.com/chanaccess/cas-go/pkg/version"
)

func run(ctx context.Context, opts *options) error {
	level, ok := logger.ParseLogLevel(opts.logLevel)
	if !ok {
		return fmt.Errorf("invalid log level %q", opts.logLevel)
	}

	// Log output moves behind the console prompt in interactive mode.
	logOut := &switchWriter{w: os.Stderr}
	logger.SetLogger(logger.NewWithWriter(nil, zapcore.AddSync(logOut)))
	logger.SetLevel(level)
	ctx = logger.WithName(ctx, "pvserver")

	db, err := pvdb.Load(opts.dbPath)
	if err != nil {
		return err
	}

	protoLog, closeLog, err := openProtocolLog(opts.protocolLog, level)
	if err != nil {
		return err
	}
	defer closeLog()

	loop := server.NewLoopback()
	srv := server.New(server.WithTransport(loop), server.WithLogger(protoLog))

	pvs, err := pvdb.Install(srv, db)
	if err != nil {
		_ = srv.Shutdown()
		return err
	}
	logger.InfoKV(ctx, "serving",
		"db", opts.dbPath, "pvs", len(pvs), "aliases", len(srv.Aliases()), "protocol", version.Current)

	sim, err := newSimulator(db, pvs, opts.simTick)
	if err != nil {
		_ = srv.Shutdown()
		return err
	}
	if opts.simulate && sim.Len() > 0 {
		sim.Start(ctx)
	}

	if opts.interactive {
		console, err := interactive.New(srv, loop, sim)
		if err != nil {
			sim.Stop()
			_ = srv.Shutdown()
			return err
		}
		logOut.Set(console.Stdout())

		ctx, cancel := context.WithCancel(ctx)
		console.Run(ctx, cancel)
		cancel()
		logOut.Set(os.Stderr)
	} else {
		<-ctx.Done()
	}

	logger.Info(ctx, "shutting down")
	sim.Stop()
	err = srv.Shutdown()
	// The server holds weak references only.
	runtime.KeepAlive(pvs)
	if err != nil {
		logger.WarnKV(ctx, "shutdown reported misuse", "error", err)
	}
	return err
}

// openProtocolLog builds the protocol logger: a CBOR file when path is set
// and the operational log at debug level. The returned func closes the file
// and reports events that could not be written.
func openProtocolLog(path string, level zapcore.Level) (log.Logger, func(), error) {
	var file log.Logger
	closeLog := func() {}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		file = fl
		closeLog = func() {
			if err := fl.Close(); err != nil {
				logger.Logger().Warnw("closing protocol log", "path", fl.Path(), "error", err)
			}
			if n := fl.Dropped(); n > 0 {
				logger.Logger().Warnw("protocol log dropped events", "path", fl.Path(), "dropped", n)
			}
		}
	}

	var console log.Logger
	if level <= zapcore.DebugLevel {
		console = log.NewZapAdapter(logger.Logger().Desugar().Named("protocol"))
	}
	return log.Combine(file, console), closeLog, nil
}

// switchWriter is an io.Writer whose destination can be replaced.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
