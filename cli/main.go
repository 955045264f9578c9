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

const validSteps = "reset, localize, calibrate, grasp, run"

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file")
	configPath := flag.String("config", "", "path to pipeline config JSON file (optional)")
	step := flag.String("step", "run", "step to run: "+validSteps)
	attempts := flag.Int("attempts", 5, "number of grasp attempts for the run step")
	flag.Parse()

	logger := logging.NewLogger("locograsp-cli")

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
	logger.Info("connected to robot")

	clk := clock.New()
	r, err := locograsp.NewRobot(ctx, machine, cfg, clk, logger)
	if err != nil {
		logger.Fatal(err)
	}
	g, err := locograsp.NewGrasper(cfg, r, clk, logger)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Infof("=== running step: %s ===", *step)
	switch *step {
	case "reset":
		err = g.Reset(ctx)
	case "localize":
		var target *locograsp.Target
		if target, err = g.ComputeGrasp(ctx); err == nil {
			logger.Infof("target: x=%.3f y=%.3f angle=%.3f", target.X, target.Y, target.Angle)
		}
	case "calibrate":
		var dx, dy float64
		if dx, dy, err = g.Calibrate(ctx); err == nil {
			logger.Infof("drift: dx=%.4fm dy=%.4fm", dx, dy)
		}
	case "grasp":
		err = locograsp.Run(ctx, g, 1)
	case "run":
		err = locograsp.Run(ctx, g, *attempts)
	default:
		logger.Fatalf("unknown step %q; valid steps: %s", *step, validSteps)
	}
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("step %s completed", *step)
}
