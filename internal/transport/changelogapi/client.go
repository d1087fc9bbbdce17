// Package changelogapi fetches the remote app changelog over HTTP.
//
// The server answers GET {endpoint}?prev_app_version=X.Y.Z with a JSON updates
// object tagged by its constructor name in the "_" field.
package changelogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whatsnew/internal/changelog"
	rtsup "whatsnew/internal/runtime/supervisor"
	logx "whatsnew/pkg/logx"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBody        = 1 << 20
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client issues changelog requests in the background.
type Client struct {
	endpoint string
	http     *http.Client
	log      logx.Logger
	sup      *rtsup.Supervisor
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "changelogapi"))

	u, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid changelog endpoint %q", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: u.String(),
		http:     &http.Client{Timeout: timeout},
		log:      log,
		sup:      rtsup.New(ctx, rtsup.WithLogger(log), rtsup.WithCancelOnError(false)),
	}, nil
}

// RequestChangelog fetches the changelog for prevVersion asynchronously.
// done runs on success only; failures are logged.
func (c *Client) RequestChangelog(ctx context.Context, prevVersion string, done func(changelog.Response)) {
	c.sup.Go0("request", func(supCtx context.Context) {
		reqCtx, cancel := mergeCancel(ctx, supCtx)
		defer cancel()

		resp, err := c.Fetch(reqCtx, prevVersion)
		if err != nil {
			c.log.Warn("changelog request failed", logx.Err(err), logx.String("prev", prevVersion))
			return
		}
		c.log.Debug("changelog received",
			logx.String("kind", resp.Kind.String()),
			logx.Int("updates", len(resp.Updates)),
		)
		if done != nil {
			done(resp)
		}
	})
}

// Fetch performs one synchronous request.
func (c *Client) Fetch(ctx context.Context, prevVersion string) (changelog.Response, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return changelog.Response{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("prev_app_version", prevVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return changelog.Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return changelog.Response{}, fmt.Errorf("making request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return changelog.Response{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	return Decode(io.LimitReader(res.Body, maxBody))
}

// Close waits for in-flight requests until ctx is done.
func (c *Client) Close(ctx context.Context) error {
	err := c.sup.Wait(ctx)
	c.sup.Cancel()
	return err
}

// mergeCancel returns a context carrying a's values that is canceled when
// either a or b is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

type wireUpdate struct {
	Type    string `json:"_"`
	Message string `json:"message,omitempty"`
}

type wireUpdates struct {
	Type    string       `json:"_"`
	Message string       `json:"message,omitempty"`
	Update  *wireUpdate  `json:"update,omitempty"`
	Updates []wireUpdate `json:"updates,omitempty"`
}

// Decode reads one tagged updates object.
func Decode(r io.Reader) (changelog.Response, error) {
	var w wireUpdates
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return changelog.Response{}, fmt.Errorf("decode changelog: %w", err)
	}

	out := changelog.Response{Kind: kindOf(w.Type)}
	switch out.Kind {
	case changelog.KindShortUpdate:
		switch {
		case w.Update != nil:
			out.Updates = []changelog.Update{{Type: w.Update.Type, Message: w.Update.Message}}
		case w.Message != "":
			out.Updates = []changelog.Update{{Type: w.Type, Message: w.Message}}
		}
	case changelog.KindCombinedUpdates, changelog.KindFullUpdates:
		out.Updates = make([]changelog.Update, 0, len(w.Updates))
		for _, u := range w.Updates {
			out.Updates = append(out.Updates, changelog.Update{Type: u.Type, Message: u.Message})
		}
	}
	return out, nil
}

func kindOf(constructor string) changelog.ResponseKind {
	switch constructor {
	case "updateShortMessage", "updateShortChatMessage", "updateShort":
		return changelog.KindShortUpdate
	case "updatesCombined":
		return changelog.KindCombinedUpdates
	case "updates":
		return changelog.KindFullUpdates
	case "updatesTooLong":
		return changelog.KindTooLong
	case "updateShortSentMessage":
		return changelog.KindShortSentMessage
	default:
		return changelog.KindUnrecognized
	}
}
