package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/audio"
	"github.com/lixenwraith/wayfinder/config"
	"github.com/lixenwraith/wayfinder/engine"
	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/network"
	"github.com/lixenwraith/wayfinder/persistence"
	"github.com/lixenwraith/wayfinder/replication"
	"github.com/lixenwraith/wayfinder/service"
	"github.com/lixenwraith/wayfinder/status"
	"github.com/lixenwraith/wayfinder/ui"
)

var (
	configFlag = flag.String("config", "", "Config file (TOML)")
	roleFlag   = flag.String("role", "", "Sync role: none, host, replica")
	addrFlag   = flag.String("addr", "", "Listen address for host, dial address for replica")
	saveFlag   = flag.String("save", "", "World save document")
	debugFlag  = flag.Bool("debug", false, "Write debug logs to logs/wayfinder.log")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wayfinder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *roleFlag != "" {
		cfg.Sync.Role = *roleFlag
	}
	if *addrFlag != "" {
		cfg.Network.Address = *addrFlag
	}
	if *saveFlag != "" {
		cfg.Save.Path = *saveFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logFile := setupLogging(*debugFlag)
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync()

	role, err := cfg.Role()
	if err != nil {
		return err
	}
	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		return err
	}

	actor := uuid.New()
	reg := status.NewRegistry()
	logger = logger.With(zap.Stringer("actor", actor))

	var session *engine.Session
	netSvc := network.NewService(actor, logger, reg)
	player := audio.NewPlayer(logger)
	statusSrv := status.NewServer(cfg.Status.Address, reg, func() any { return session.Snapshot() }, logger)

	hub := service.NewHub(logger)
	for _, r := range []struct {
		svc  service.Service
		args []any
	}{
		{netSvc, []any{netCfg}},
		{player, []any{cfg.AudioConfig()}},
		{statusSrv, nil},
	} {
		if err := hub.Register(r.svc, r.args...); err != nil {
			return err
		}
	}
	if err := hub.InitAll(); err != nil {
		return err
	}

	targets := guidance.NewTargetSet()
	targets.Replace(demoTargets())
	prompt := ui.NewPrompt()

	session = engine.NewSession(engine.Config{
		Role:           role,
		Capacity:       cfg.Capacity(),
		Limits:         cfg.Limits(),
		Guidance:       cfg.GuidanceParams(),
		AnnounceOnSync: cfg.Sync.AnnounceOnSync,
	}, engine.Deps{
		Sender:   netSvc,
		Events:   netSvc.Events(),
		Player:   player,
		Targets:  targets,
		Prompt:   prompt,
		Logger:   logger.Named("engine"),
		Registry: reg,
	})

	// Replicas take their state from the host
	if role != replication.RoleReplica {
		if err := persistence.Load(cfg.Save.Path, session.Store()); err != nil && !errors.Is(err, persistence.ErrNoDocument) {
			return fmt.Errorf("load world: %w", err)
		}
	}

	if err := hub.StartAll(); err != nil {
		return err
	}
	defer hub.StopAll()
	logger.Info("services started",
		zap.Strings("services", hub.Names()),
		zap.Stringer("role", role),
		zap.String("addr", netSvc.Addr()))

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}

	// Restore the terminal before printing a crash
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "\n\x1b[31mWAYFINDER CRASHED: %v\x1b[0m\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	a := newApp(session, ui.NewView(screen), prompt, actor.String(), float32(cfg.Guidance.TileSize), logger.Named("ui"))
	loop(screen, a, cfg.UI.TickRate)
	screen.Fini()

	if role != replication.RoleReplica {
		if err := persistence.Save(cfg.Save.Path, session.Store()); err != nil {
			logger.Error("save failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "wayfinder: save world: %v\n", err)
		}
	}
	session.Close()
	return nil
}

// loop runs input and ticks on one goroutine until quit
func loop(screen tcell.Screen, a *app, tickRate time.Duration) {
	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	a.tick()
	a.draw()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !a.handleKey(ev) {
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			a.draw()
		case <-ticker.C:
			a.tick()
			a.draw()
		}
	}
}
