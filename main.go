package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"uciarena/config"
	"uciarena/match"
	"uciarena/rules"
	"uciarena/tournament"
	"uciarena/uci"
)

var _ match.Searcher = (*uci.Engine)(nil)

func main() {
	configPath := flag.String("config", "arena.yaml", "tournament configuration file")
	debug := flag.Bool("debug", false, "log engine protocol traffic")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		Level(level).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("arena aborted")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	engines := make(map[string]*uci.Engine, len(cfg.Players))
	names := make([]string, 0, len(cfg.Players))
	defer func() {
		for _, e := range engines {
			if err := e.Close(); err != nil {
				log.Warn().Err(err).Str("engine", e.Name()).Msg("close")
			}
		}
	}()

	for _, p := range cfg.Players {
		eng, err := uci.Start(p.Name, p.Command, log)
		if err != nil {
			return fmt.Errorf("start %s: %w", p.Name, err)
		}
		engines[p.Name] = eng
		names = append(names, p.Name)

		for _, o := range p.Options {
			eng.SetOption(o.Name, o.Value)
		}
		for _, o := range p.MidgameOptions {
			eng.SetMidgameOption(o.Name, o.Value)
		}
		eng.SetSearch(uci.SearchConfig{
			UseClock:   p.Search.TimeManagement(),
			Depth:      p.Search.Depth,
			MoveTimeMs: p.Search.MoveTimeMs,
		})
	}

	var results []tournament.Result
	for _, pairing := range tournament.RoundRobin(names) {
		log.Info().Str("white", pairing.White).Str("black", pairing.Black).Msg("starting game")

		m, err := match.New(engines[pairing.White], engines[pairing.Black], rules.NewGame(), match.Options{
			TimeMs:        cfg.TimeMs,
			MidgamePly:    cfg.MidgamePly,
			ForfeitOnFlag: cfg.ForfeitOnFlag,
			Logger:        log,
		})
		if err != nil {
			return err
		}

		status, err := m.FinishGame()
		if err != nil {
			return err
		}
		fmt.Println(status)

		results = append(results, tournament.Result{
			White:   pairing.White,
			Black:   pairing.Black,
			Outcome: status.Outcome,
			Plies:   m.Plies(),
		})
		tournament.WriteTable(os.Stdout, tournament.Standings(names, results))
		fmt.Println()
	}
	return nil
}
