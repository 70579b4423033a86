package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/cobotkit/cobot/pkg/cobot"
)

type MoveCommand struct {
	Sim   bool    `long:"sim" description:"Drive the bundled simulator instead of hardware"`
	Joint int     `long:"joint" short:"j" required:"true" description:"Joint index (0-5)"`
	Angle float64 `long:"angle" short:"a" required:"true" description:"Target angle in degrees"`
	Speed float64 `long:"speed" short:"s" default:"30" description:"Speed in degrees/second"`
	Wait  bool    `long:"wait" short:"w" description:"Wait until the joint reaches the target"`
}

func (c *MoveCommand) Execute(args []string) error {
	cfg := loadConfig()
	ctx := context.Background()

	client, err := bringUp(ctx, cfg, c.Sim)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	if err := client.MoveTo(ctx, c.Joint, c.Angle, c.Speed); err != nil {
		return err
	}
	fmt.Printf("Joint %d moving to %.1f° at %.1f°/s\n", c.Joint, c.Angle, c.Speed)

	if !c.Wait {
		return nil
	}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(cfg.PollInterval.Std())
		js, ok := client.JointState(c.Joint)
		if !ok {
			break
		}
		if !js.Moving() {
			fmt.Printf("Joint %d at %.1f°\n", c.Joint, js.MeasuredAngle)
			return nil
		}
	}
	return fmt.Errorf("joint %d did not reach %.1f° in time", c.Joint, c.Angle)
}

type StopCommand struct {
	Sim    bool `long:"sim" description:"Drive the bundled simulator instead of hardware"`
	Joint  int  `long:"joint" short:"j" default:"-1" description:"Joint index to stop (0-5)"`
	All    bool `long:"all" description:"Stop every joint"`
	Smooth bool `long:"smooth" description:"Decelerate instead of stopping immediately"`
}

func (c *StopCommand) Execute(args []string) error {
	if !c.All && c.Joint < 0 {
		return fmt.Errorf("pass --joint N or --all")
	}

	cfg := loadConfig()
	ctx := context.Background()

	client, err := bringUp(ctx, cfg, c.Sim)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	if c.All {
		if err := client.StopAll(ctx, c.Smooth); err != nil {
			return err
		}
		fmt.Println("All joints stopped")
		return nil
	}
	if err := client.Stop(ctx, c.Joint); err != nil {
		return err
	}
	fmt.Printf("Joint %d stopped\n", c.Joint)
	return nil
}

type CalibrateCommand struct {
	Sim    bool  `long:"sim" description:"Drive the bundled simulator instead of hardware"`
	Joints []int `long:"joint" short:"j" description:"Joint index to calibrate; repeatable. Prompts when omitted"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	cfg := loadConfig()
	meta := cfg.JointMeta()

	selected := c.Joints
	if len(selected) == 0 {
		var err error
		selected, err = pickJoints(meta)
		if err != nil {
			return err
		}
	}

	mask := cobot.JointMask(selected...)
	ctx := context.Background()

	client, err := bringUp(ctx, cfg, c.Sim)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	fmt.Printf("Calibrating %d joint(s)...\n", len(selected))
	if err := client.Calibrate(ctx, mask); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Calibration complete"))
	return nil
}

func pickJoints(meta []cobot.Joint) ([]int, error) {
	options := make([]huh.Option[int], len(meta))
	for i, j := range meta {
		options[i] = huh.NewOption(fmt.Sprintf("%d: %s", i, j.Name), i)
	}

	var selected []int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Which joints should be calibrated?").
				Description("Calibration moves the selected joints to their limit switches").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no joints selected")
	}
	return selected, nil
}
