// Command curiumd is a minimal demo node: it connects to Redis, joins a
// channel, registers an echo command, and serves until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	curium "github.com/susautw/curium-go"
	"github.com/susautw/curium-go/broker"
	"github.com/susautw/curium-go/codec"
)

type echoCmd struct {
	Message string `json:"message"`
}

func (e *echoCmd) CommandName() string { return "echo" }

func (e *echoCmd) Execute(ctx curium.Context) (any, error) {
	return e.Message, nil
}

func main() {
	redisAddr := flag.String("redis-addr", "localhost:6379", "redis address")
	channel := flag.String("channel", "demo", "channel to join")
	configFile := flag.String("config", "", "optional NodeConfig YAML file")
	flag.Parse()

	cfg := curium.DefaultNodeConfig()
	if *configFile != "" {
		loaded, err := curium.LoadNodeConfig(*configFile)
		if err != nil {
			log.Fatalf("curiumd: loading config: %v", err)
		}
		cfg = loaded
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	adapter := broker.NewRedisAdapter(client, broker.DefaultRedisAdapterConfig(), slog.Default())

	node, err := curium.NewNode(adapter, codec.NewJSONCodec(), cfg, slog.Default())
	if err != nil {
		log.Fatalf("curiumd: constructing node: %v", err)
	}
	if err := node.RegisterCmd(func() curium.Command { return &echoCmd{} }, nil); err != nil {
		log.Fatalf("curiumd: registering echo command: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nid, err := node.Connect(ctx)
	if err != nil {
		log.Fatalf("curiumd: connect: %v", err)
	}
	slog.Info("curiumd connected", "nid", nid)

	if err := node.Join(ctx, *channel); err != nil {
		log.Fatalf("curiumd: join %s: %v", *channel, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("curiumd shutting down")
		cancel()
	}()

	if err := node.RecvUntilClose(ctx, curium.RecvOptions{}); err != nil && ctx.Err() == nil {
		log.Fatalf("curiumd: recv loop: %v", err)
	}
	_ = node.Close(context.Background())
}
