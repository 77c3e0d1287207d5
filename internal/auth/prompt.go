package auth

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jimezsa/jobpilot/internal/ui"
)

// TerminalPrompt collects the callback URL from a line of operator input.
type TerminalPrompt struct {
	In io.Reader
	UI *ui.UI
}

func (p *TerminalPrompt) ObtainCallbackURL(ctx context.Context, authorizationURL string) (string, error) {
	if p.In == nil {
		return "", ErrPromptCancelled
	}
	if p.UI != nil {
		p.UI.Noticef("\n--- Upwork API OAuth Authorization Needed ---")
		p.UI.Infof("1. Open the following URL in your browser:")
		p.UI.Infof("   %s", p.UI.LinkText(authorizationURL))
		p.UI.Infof("2. Authorize the application.")
		p.UI.Infof("3. Copy the FULL redirected URL from your browser's address bar.")
		p.UI.Infof("4. Paste the full callback URL here and press Enter:")
	}

	type result struct {
		line string
		err  error
	}
	lines := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		lines <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Join(ErrPromptCancelled, ctx.Err())
	case res := <-lines:
		line := strings.TrimSpace(res.line)
		if line == "" {
			return "", ErrPromptCancelled
		}
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return "", res.err
		}
		return line, nil
	}
}
