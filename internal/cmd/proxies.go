package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/jimezsa/jobpilot/internal/network"
	"golang.org/x/sync/errgroup"
)

type ProxiesCmd struct {
	Check ProxyCheckCmd `cmd:"" help:"Validate proxies against the GraphQL endpoint or another URL."`
}

type ProxyCheckCmd struct {
	Target   string `help:"Target URL (default: configured GraphQL endpoint)."`
	Timeout  int    `help:"Timeout in seconds." default:"15"`
	Parallel int    `help:"Proxies checked at once." default:"4"`
}

type ProxyCheckResult struct {
	Proxy     string `json:"proxy"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (p *ProxyCheckCmd) Run(ctx *Context) error {
	proxies, err := config.LoadProxies(ctx.Proxies)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		return fmt.Errorf("no proxies configured")
	}
	target := p.Target
	if target == "" {
		target = ctx.Config.Upwork.GraphQLURL
	}

	results := make([]ProxyCheckResult, len(proxies))
	eg, egctx := errgroup.WithContext(ctx.context())
	eg.SetLimit(max(p.Parallel, 1))
	for i, proxy := range proxies {
		eg.Go(func() error {
			results[i] = checkProxy(egctx, proxy, target, time.Duration(p.Timeout)*time.Second)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	return writeProxyResults(ctx, results)
}

func checkProxy(ctx context.Context, proxy, target string, timeout time.Duration) ProxyCheckResult {
	result := ProxyCheckResult{Proxy: proxy}
	fail := func(err error) ProxyCheckResult {
		result.Status = "error"
		result.Error = err.Error()
		return result
	}

	// An empty ban list keeps the single proxy usable for the whole check.
	rotator, err := network.NewRotator([]string{proxy}, time.Minute, network.WithBanStatuses())
	if err != nil {
		return fail(err)
	}
	client, err := network.NewClient(rotator, network.Options{TimeoutSeconds: int(timeout.Seconds())})
	if err != nil {
		return fail(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := fhttp.NewRequestWithContext(reqCtx, fhttp.MethodGet, target, nil)
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	_ = resp.Body.Close()

	result.LatencyMS = time.Since(start).Milliseconds()
	result.Status = fmt.Sprintf("%d", resp.StatusCode)
	return result
}

func writeProxyResults(ctx *Context, results []ProxyCheckResult) error {
	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "proxy\tstatus\tlatency_ms\terror")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", res.Proxy, res.Status, res.LatencyMS, res.Error)
	}
	return tw.Flush()
}
