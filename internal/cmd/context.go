package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jimezsa/jobpilot/internal/apply"
	"github.com/jimezsa/jobpilot/internal/auth"
	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/jimezsa/jobpilot/internal/grading"
	"github.com/jimezsa/jobpilot/internal/llm"
	"github.com/jimezsa/jobpilot/internal/network"
	"github.com/jimezsa/jobpilot/internal/pipeline"
	"github.com/jimezsa/jobpilot/internal/seen"
	"github.com/jimezsa/jobpilot/internal/ui"
	"github.com/jimezsa/jobpilot/internal/upwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const proxyBanDuration = 10 * time.Minute

type Context struct {
	// Base is cancelled on interrupt.
	Base       context.Context
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	SaveTokens bool
	Proxies    string
	Version    string
	ColorMode  ui.ColorMode
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (c *Context) context() context.Context {
	if c.Base != nil {
		return c.Base
	}
	return context.Background()
}

func (c *Context) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

func (c *Context) httpClient() (*network.Client, error) {
	proxies, err := config.LoadProxies(c.Proxies)
	if err != nil {
		return nil, err
	}
	var rotator *network.Rotator
	if len(proxies) > 0 {
		rotator, err = network.NewRotator(proxies, proxyBanDuration)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug().Int("proxies", rotator.Len()).Msg("routing requests through proxies")
	}
	return network.NewClient(rotator, network.Options{TimeoutSeconds: c.Config.RequestTimeoutSeconds})
}

// upworkClient returns a search client holding an authorized session. It may
// prompt on the terminal for the OAuth callback URL.
func (c *Context) upworkClient(ctx context.Context) (*upwork.Client, error) {
	doer, err := c.httpClient()
	if err != nil {
		return nil, err
	}
	logger := c.Logger.With().Str("component", "upwork").Logger()
	client := upwork.NewClient(doer,
		upwork.WithLimiter(rate.NewLimiter(rate.Limit(c.Config.RequestsPerSecond), 1)),
		upwork.WithLogger(logger),
		upwork.WithEndpoint(c.Config.Upwork.GraphQLURL),
	)

	creds := config.LoadCredentials(c.getenv)
	var sink auth.TokenSink = &auth.NoticeSink{UI: c.UI}
	if c.SaveTokens {
		creds = creds.WithKeyring()
		sink = &auth.KeyringSink{Next: sink, Logger: c.Logger}
	}

	manager := auth.NewManager(creds, client,
		auth.WithPrompt(&auth.TerminalPrompt{In: c.In, UI: c.UI}),
		auth.WithSink(sink),
		auth.WithLogger(c.Logger.With().Str("component", "auth").Logger()),
		auth.WithEndpoint(c.Config.Upwork.AuthURL, c.Config.Upwork.TokenURL),
	)
	session, err := manager.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	return client.Authorized(session), nil
}

func (c *Context) openGate(ctx context.Context) (seen.Gate, error) {
	backend := c.Config.Dedup.Backend
	path := c.Config.DedupPath(c.ConfigDir)
	if backend != seen.BackendRedis {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	gate, err := seen.Open(ctx, seen.Options{
		Backend:     backend,
		Path:        path,
		RedisURL:    c.Config.Dedup.RedisURL,
		RedisPrefix: seen.DefaultRedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}
	c.Logger.Debug().Str("backend", backend).Str("path", path).Msg("dedup store opened")
	return gate, nil
}

type stageSet uint8

const (
	needFetch stageSet = 1 << iota
	needGrade
	needApply
)

// runner wires the collaborators the requested stages need. The returned
// close func releases the dedup store.
func (c *Context) runner(ctx context.Context, needs stageSet) (*pipeline.Runner, func(), error) {
	r := &pipeline.Runner{
		ProfilePath: c.Config.ProfilePath,
		Threshold:   c.Config.ScoreThreshold,
		Logger:      c.Logger,
	}
	closeFn := func() {}

	if needs&needFetch != 0 {
		client, err := c.upworkClient(ctx)
		if err != nil {
			return nil, closeFn, err
		}
		gate, err := c.openGate(ctx)
		if err != nil {
			return nil, closeFn, err
		}
		r.Searcher = client
		r.Gate = gate
		closeFn = func() {
			if err := gate.Close(); err != nil {
				c.Logger.Warn().Err(err).Msg("close dedup store")
			}
		}
	}

	if needs&(needGrade|needApply) != 0 {
		router := llm.FromConfig(ctx, c.Config, c.Logger.With().Str("component", "llm").Logger())
		if needs&needGrade != 0 {
			r.Scorer = grading.NewCoordinator(router, c.Config.Model,
				grading.WithConcurrency(c.Config.Concurrency),
				grading.WithLogger(c.Logger.With().Str("component", "grading").Logger()),
			)
		}
		if needs&needApply != 0 {
			r.Preparer = apply.NewGenerator(router, c.Config.Model,
				apply.WithConcurrency(c.Config.Concurrency),
				apply.WithLogger(c.Logger.With().Str("component", "apply").Logger()),
			)
		}
	}

	return r, closeFn, nil
}
