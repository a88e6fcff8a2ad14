// Command server runs the rediscore key/value store: a single-threaded
// event-loop process speaking RESP over raw non-blocking sockets,
// grounded on the teacher's cmd/server but rebuilt around
// internal/eventloop instead of one goroutine per connection (spec §5).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rediscore/server/internal/config"
	"github.com/rediscore/server/internal/eventloop"
	"github.com/rediscore/server/internal/logger"
	"github.com/rediscore/server/internal/persistence"
	"github.com/rediscore/server/internal/server"
	"github.com/rediscore/server/internal/store"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if err == config.ErrHelpRequested {
			return 0
		}
		fmt.Fprintln(os.Stderr, "rediscore-server:", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	log.Info("rediscore starting",
		zap.Int("port", cfg.Port),
		zap.String("dir", cfg.Dir),
		zap.String("dbfilename", cfg.DBFilename),
	)

	ks := store.New()
	rdb := persistence.New(filepath.Join(cfg.Dir, cfg.DBFilename), log)
	if err := rdb.Load(ks); err != nil {
		log.Error("snapshot load failed", zap.Error(err))
		return 1
	}

	loop, err := eventloop.New(log)
	if err != nil {
		log.Error("event loop init failed", zap.Error(err))
		return 1
	}
	defer loop.Close() //nolint:errcheck

	engine := server.NewEngine(ks, log, rdb, cfg.Dir, cfg.DBFilename)
	listener := server.NewListener(loop, engine, log)
	defer listener.Close() //nolint:errcheck

	if cfg.IsReplica {
		engine.BecomeFollower(cfg.ReplicaOfHost, fmt.Sprint(cfg.ReplicaOfPort))
		handshake := server.NewReplicaHandshake(loop, engine, log, cfg.ReplicaOfHost, cfg.ReplicaOfPort, cfg.Port)
		if err := handshake.Start(); err != nil {
			log.Error("replica handshake failed", zap.Error(err))
			return 1
		}
	} else {
		engine.BecomeLeader()
	}

	if err := listener.Listen(cfg.Host, cfg.Port); err != nil {
		log.Error("listen failed", zap.Error(err))
		return 1
	}
	log.Info("listening", zap.String("address", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		loop.Stop()
	}()

	loop.Run()

	log.Info("shutting down, saving snapshot")
	if err := rdb.Save(ks); err != nil {
		log.Error("snapshot save failed", zap.Error(err))
		return 1
	}
	return 0
}
