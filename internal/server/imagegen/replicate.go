// Package imagegen talks to the Replicate prediction API: text-to-image for
// wallpapers and a text model for prompt suggestions.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/replicate/replicate-go"
)

const suggestInstruction = "You enhance short prompts for image generation. " +
	"Rewrite the user's prompt to be more detailed, vivid, and descriptive. " +
	"Keep it short (1-2 sentences). Do not add styles unless the user mentions them."

const defaultMaxImageBytes = 32 << 20

// Options configures a Client. Zero values fall back to sensible defaults.
// Without a Token every prediction fails with common.ErrUpstreamFailure.
type Options struct {
	BaseURL      string
	Token        string
	ImageModel   string
	SuggestModel string
	// HTTPClient fetches generated images from their output URL.
	HTTPClient    *http.Client
	PollInterval  time.Duration
	MaxImageBytes int64
}

// Client runs predictions and waits for their result.
type Client struct {
	api           *replicate.Client
	imageModel    string
	suggestModel  string
	http          *http.Client
	pollInterval  time.Duration
	maxImageBytes int64
}

func NewClient(opts Options) (*Client, error) {
	c := &Client{
		imageModel:    opts.ImageModel,
		suggestModel:  opts.SuggestModel,
		http:          opts.HTTPClient,
		pollInterval:  opts.PollInterval,
		maxImageBytes: opts.MaxImageBytes,
	}
	if c.imageModel == "" {
		c.imageModel = "black-forest-labs/flux-schnell"
	}
	if c.suggestModel == "" {
		c.suggestModel = "meta/meta-llama-3-70b-instruct"
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.maxImageBytes <= 0 {
		c.maxImageBytes = defaultMaxImageBytes
	}

	if opts.Token == "" {
		return c, nil
	}
	clientOpts := []replicate.ClientOption{replicate.WithToken(opts.Token)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, replicate.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	api, err := replicate.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("replicate client: %w", err)
	}
	c.api = api
	return c, nil
}

func upstream(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrUpstreamFailure, fmt.Sprintf(format, args...))
}

// outputs flattens the prediction output, which is either a single string or
// a list of strings.
func outputs(p *replicate.Prediction) ([]string, error) {
	switch out := p.Output.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{out}, nil
	case []any:
		list := make([]string, 0, len(out))
		for _, v := range out {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected output element %T", v)
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected output shape %T", out)
	}
}

// Generate renders prompt at width x height and returns the encoded webp.
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	p, err := c.run(ctx, c.imageModel, replicate.PredictionInput{
		"prompt":              prompt,
		"width":               width,
		"height":              height,
		"num_outputs":         1,
		"guidance":            3.5,
		"num_inference_steps": 4,
		"output_format":       "webp",
	})
	if err != nil {
		return nil, err
	}

	out, err := outputs(p)
	if err != nil {
		return nil, upstream("%v", err)
	}
	if len(out) == 0 || out[0] == "" {
		return nil, upstream("prediction %s returned no image", p.ID)
	}

	return c.download(ctx, out[0])
}

// Suggest rewrites a short prompt into a more descriptive one.
func (c *Client) Suggest(ctx context.Context, prompt string) (string, error) {
	p, err := c.run(ctx, c.suggestModel, replicate.PredictionInput{
		"prompt":      fmt.Sprintf("%s\nUser prompt: %s\nEnhanced prompt:", suggestInstruction, prompt),
		"temperature": 0.6,
		"max_tokens":  120,
	})
	if err != nil {
		return "", err
	}

	out, err := outputs(p)
	if err != nil {
		return "", upstream("%v", err)
	}
	s := strings.TrimSpace(strings.Join(out, ""))
	if s == "" {
		return "", upstream("prediction %s returned no text", p.ID)
	}
	return s, nil
}

func (c *Client) run(ctx context.Context, model string, input replicate.PredictionInput) (*replicate.Prediction, error) {
	if c.api == nil {
		return nil, upstream("replicate token not configured")
	}
	owner, name, ok := strings.Cut(model, "/")
	if !ok || owner == "" || name == "" {
		return nil, upstream("model %q is not owner/name", model)
	}

	p, err := c.api.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	if err != nil {
		return nil, failure(ctx, err)
	}
	if !p.Status.Terminated() {
		if err := c.api.Wait(ctx, p, replicate.WithPollingInterval(c.pollInterval)); err != nil {
			return nil, failure(ctx, err)
		}
	}

	if p.Status != replicate.Succeeded {
		return nil, upstream("prediction %s %s: %v", p.ID, p.Status, p.Error)
	}
	return p, nil
}

// failure keeps cancellation visible to callers and maps everything else to
// common.ErrUpstreamFailure.
func failure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return upstream("%v", err)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, upstream("bad output url: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstream("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstream("download %s returned %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, upstream("read image: %v", err)
	}
	if int64(len(b)) > c.maxImageBytes {
		return nil, upstream("image exceeds %d bytes", c.maxImageBytes)
	}
	if len(b) == 0 {
		return nil, upstream("empty image")
	}
	return b, nil
}
