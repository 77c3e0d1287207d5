package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/cmd"
	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/jimezsa/jobpilot/internal/ui"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)
	versionString := buildVersion()

	parser, err := kong.New(cli,
		kong.Name("jobpilot"),
		kong.Description("Upwork job search, grading and application drafting."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": versionString},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fallbackUI := ui.New(os.Stdout, os.Stderr, ui.NormalizeColorMode(os.Getenv("JOBPILOT_COLOR")), false)
		fallbackUI.Errorf("%v", err)
		os.Exit(1)
	}

	colorMode := ui.NormalizeColorMode(cli.Color)
	userInterface := ui.New(os.Stdout, os.Stderr, colorMode, cli.JSON)

	cfg, err := config.Load()
	if err != nil {
		userInterface.Errorf("%v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		userInterface.Errorf("%v", err)
		os.Exit(1)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		userInterface.Errorf("%v", err)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	base, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx := &cmd.Context{
		Base:       base,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		UI:         userInterface,
		Config:     cfg,
		ConfigDir:  configDir,
		Logger:     logger,
		Verbose:    cli.Verbose,
		JSONOutput: cli.JSON,
		SaveTokens: cli.SaveTokens || cfg.SaveTokens,
		Proxies:    cli.Proxies,
		Version:    versionString,
		ColorMode:  colorMode,
	}

	if err := kctx.Run(runCtx); err != nil {
		var cfgErr *auth.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Error().Strs("missing", cfgErr.Missing).Msg("upwork authorization failed")
		}
		userInterface.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func buildVersion() string {
	if commit == "" && date == "" {
		return version
	}
	if commit == "" {
		return fmt.Sprintf("%s (%s)", version, date)
	}
	if date == "" {
		return fmt.Sprintf("%s (%s)", version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func applyEnvDefaults(cli *cmd.CLI) {
	if envBool("JOBPILOT_JSON") {
		cli.JSON = true
	}
	if envBool("JOBPILOT_VERBOSE") {
		cli.Verbose = true
	}
	if envBool("JOBPILOT_SAVE_TOKENS") {
		cli.SaveTokens = true
	}
	if value := os.Getenv("JOBPILOT_COLOR"); value != "" {
		cli.Color = value
	}
}

func envBool(key string) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
