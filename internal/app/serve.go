package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/sandeepkv93/remindd/internal/commands"
	"github.com/sandeepkv93/remindd/internal/dashboard"
	"github.com/sandeepkv93/remindd/internal/notify"
	"github.com/sandeepkv93/remindd/internal/trigger"
)

func (a *App) newEngine() (*trigger.Engine, error) {
	return trigger.NewEngine(a.Runner, a.Config.Period, a.Config.ResultBuffer,
		a.Log.With().Str("component", "trigger").Logger())
}

// Serve runs reminder cycles on the configured period until SIGINT or
// SIGTERM, then waits for in-flight cycles and closes the store.
func (a *App) Serve(ctx context.Context) (commands.Result, error) {
	engine, err := a.newEngine()
	if err != nil {
		return commands.Result{}, err
	}
	engine.Start(ctx)
	go a.logResults(engine.C())

	a.Log.Info().
		Dur("period", a.Config.Period).
		Int("concurrency", a.Config.Concurrency).
		Str("store", a.Config.Store).
		Str("gate", a.Config.Gate).
		Msg("reminder service started")

	wait := gfshutdown.GracefulShutdown(context.Background(), a.Config.ShutdownTimeout, map[string]gfshutdown.Operation{
		"trigger": func(context.Context) error {
			engine.Stop()
			return nil
		},
	})
	exitCode := <-wait
	if err := a.Close(); err != nil {
		a.Log.Error().Err(err).Msg("close connections")
	}
	if exitCode != 0 {
		return commands.Result{}, fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return commands.Result{Message: fmt.Sprintf("stopped after %d cycle(s), %d overrun(s), %d dropped result(s)",
		engine.Fired(), engine.Overruns(), engine.Dropped())}, nil
}

func (a *App) logResults(results <-chan trigger.Result) {
	for res := range results {
		r := res.Report
		if res.Err != nil {
			a.Log.Error().Err(res.Err).Str("cycle_id", r.CycleID).Msg("reminder cycle aborted")
			continue
		}
		evt := a.Log.Info()
		if r.Failed > 0 {
			evt = a.Log.Warn()
		}
		evt.Str("cycle_id", r.CycleID).
			Int("evaluated", r.Evaluated).
			Int("skipped", r.Skipped).
			Int("claimed", r.Claimed).
			Int("sent", r.Sent).
			Int("failed", r.Failed).
			Dur("took", r.Duration).
			Msg("reminder cycle finished")
	}
}

// Watch runs the same schedule as Serve behind the terminal dashboard.
func (a *App) Watch(ctx context.Context) (commands.Result, error) {
	engine, err := a.newEngine()
	if err != nil {
		return commands.Result{}, err
	}

	deps := dashboard.Deps{
		Engine:   engine,
		Exec:     a.Exec,
		Upcoming: a.upcomingAll,
	}
	if a.Config.Desktop {
		deps.Desktop = notify.Desktop{}
	}
	program := tea.NewProgram(dashboard.NewModel(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))

	engine.Start(ctx)
	go func() {
		<-gfshutdown.GracefulShutdown(context.Background(), a.Config.ShutdownTimeout, map[string]gfshutdown.Operation{
			"dashboard": func(context.Context) error {
				program.Quit()
				return nil
			},
		})
	}()

	_, runErr := program.Run()
	engine.Stop()
	if runErr != nil {
		return commands.Result{}, fmt.Errorf("dashboard: %w", runErr)
	}
	return commands.Result{Message: fmt.Sprintf("dashboard closed after %d cycle(s)", engine.Fired())}, nil
}
