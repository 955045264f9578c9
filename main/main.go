package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"

	"github.com/biotinker/locograsp"
	"github.com/biotinker/locograsp/internal/creds"
)

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file")
	configPath := flag.String("config", "", "path to pipeline config JSON file (optional)")
	attempts := flag.Int("attempts", 5, "number of grasp attempts")
	flag.Parse()

	logger := logging.NewDebugLogger("locograsp")

	if *credsPath == "" {
		logger.Fatal("-creds flag is required")
	}
	robotCreds, err := creds.Load(*credsPath)
	if err != nil {
		logger.Fatal(err)
	}
	cfg, err := locograsp.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
		ctx,
		robotCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			robotCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: robotCreds.APIKey,
			})),
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer machine.Close(context.Background())

	clk := clock.New()
	r, err := locograsp.NewRobot(ctx, machine, cfg, clk, logger)
	if err != nil {
		logger.Fatal(err)
	}
	g, err := locograsp.NewGrasper(cfg, r, clk, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := locograsp.Run(ctx, g, *attempts); err != nil {
		logger.Fatal(err)
	}
}
