package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Follow grinder events",
		GroupID: gBasic,
		Long: `Print dosing, screen, settings and fault events as they happen.

Press Ctrl-C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.SubscribeEvents(ctx)
			if err != nil {
				return err
			}

			for ev := range ch {
				if err := printEvent(cmd.OutOrStdout(), ev); err != nil {
					return err
				}
			}
			if ctx.Err() == nil {
				return fmt.Errorf("daemon closed the event stream")
			}
			return nil
		},
	}
}

func printEvent(w io.Writer, ev events.Event) error {
	var line string
	switch ev.Name {
	case events.DosingState:
		p, err := events.DecodeAs[events.DosingStateEvent](ev)
		if err != nil {
			return err
		}
		line = fmt.Sprintf("dosing %s -> %s at %.1fg of %.1fg", p.From, p.To, p.Weight, p.Target)
		line = withTs(p.Ts, line)
	case events.ScreenChange:
		p, err := events.DecodeAs[events.ScreenEvent](ev)
		if err != nil {
			return err
		}
		line = withTs(p.Ts, fmt.Sprintf("screen %s -> %s", p.From, p.To))
	case events.DoseChanged:
		p, err := events.DecodeAs[events.DoseEvent](ev)
		if err != nil {
			return err
		}
		line = withTs(p.Ts, fmt.Sprintf("dose %.1fg -> %s", p.Previous, bold("%.1fg", p.Dose)))
	case events.CalibrationSaved:
		p, err := events.DecodeAs[events.CalibrationEvent](ev)
		if err != nil {
			return err
		}
		line = withTs(p.Ts, fmt.Sprintf("calibration factor %.2f -> %s", p.Previous, bold("%.2f", p.Factor)))
	case events.SensorFault:
		p, err := events.DecodeAs[events.SensorFaultEvent](ev)
		if err != nil {
			return err
		}
		line = withTs(p.Ts, color.New(color.Bold, color.FgRed).Sprintf("sensor fault: %s", p.Message))
	default:
		line = fmt.Sprintf("%s %s", ev.Name, ev.Data)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func withTs(ts int64, s string) string {
	if ts == 0 {
		return s
	}
	return time.Unix(ts, 0).Format(time.TimeOnly) + " " + s
}
