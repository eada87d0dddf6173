package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/distribuidos-core/consensus-node/internal/config"
	"github.com/distribuidos-core/consensus-node/internal/node"
	"github.com/distribuidos-core/consensus-node/internal/transport"
)

func main() {
	id := flag.Int64("id", 0, "this process's numeric id (required, must be unique in the group)")
	configPath := flag.String("config", "", "path to config.yaml (defaults to the demo profile if omitted)")
	flag.Parse()

	if *id == 0 {
		log.Fatal("--id is required and must be nonzero")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	tr, err := transport.NewUDP(logger)
	if err != nil {
		logger.Printf("initial multicast join failed, will retry: %v", err)
	}

	n := node.New(int32(*id), cfg, tr, logger)
	n.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("received signal %v, shutting down", sig)
	n.Stop()
}
