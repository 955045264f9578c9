package locograsp

import (
	"context"

	"github.com/pkg/errors"
)

// Run executes up to the given number of grasp attempts. Each attempt resets
// the robot, computes a fresh target, and executes the staged grasp; a failed
// attempt is logged and the next one starts from a clean reset. Cancelling
// ctx stops after the current attempt and still tries to park the arm in its
// retract configuration on the way out. Run reports an error only when every
// attempt failed.
func Run(ctx context.Context, g *Grasper, attempts int) error {
	var succeeded int
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			g.logger.Info("interrupted, stopping grasp attempts")
			break
		}
		g.logger.Infof("grasp attempt %d/%d", i+1, attempts)

		if err := g.Reset(ctx); err != nil {
			g.logger.Errorf("arm reset failed: %v", err)
			continue
		}
		target, err := g.ComputeGrasp(ctx)
		if err != nil {
			g.logger.Errorf("grasp localization failed: %v", err)
			continue
		}
		if err := g.ExecuteGrasp(ctx, target); err != nil {
			g.logger.Errorf("grasp failed at stage %s: %v", g.Stage(), err)
			continue
		}
		succeeded++
		g.logger.Infof("grasp attempt %d succeeded", i+1)
	}

	// Park the arm even when ctx was cancelled; the reset's own retry cap
	// keeps this bounded if the robot is unresponsive.
	if err := g.Reset(context.WithoutCancel(ctx)); err != nil {
		g.logger.Warnf("final reset: %v", err)
	}

	g.logger.Infof("%d/%d grasp attempts succeeded", succeeded, attempts)
	if succeeded == 0 && attempts > 0 {
		return errors.New("all grasp attempts failed")
	}
	return nil
}
