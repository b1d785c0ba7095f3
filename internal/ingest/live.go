package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// LiveOptions configures the live lead feed.
type LiveOptions struct {
	// URL returns one lead JSON object per GET. Empty uses the built-in generator.
	URL string

	// Interval is the target interval between successful imports.
	// Defaults to 2s. Minimum enforced at 100ms.
	Interval time.Duration

	// Jitter applies a +/- fraction to Interval, clamped to [0.0, 1.0].
	Jitter float64

	// Count limits the number of leads. 0 means run until ctx is cancelled.
	Count int

	Logger     *log.Logger
	HTTPClient *http.Client
	Generator  *Generator
}

// LiveIngestor pulls one lead at a time from a feed and imports it.
type LiveIngestor struct {
	importer *Importer
	opts     LiveOptions
	client   *http.Client
	logger   *log.Logger
	rng      *rand.Rand
}

// NewLiveIngestor constructs a LiveIngestor with defaults and clamps.
func NewLiveIngestor(importer *Importer, opts LiveOptions) *LiveIngestor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[live-ingest] ", log.LstdFlags)
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Interval < 100*time.Millisecond {
		opts.Interval = 100 * time.Millisecond
	}
	opts.Jitter = math.Max(0, math.Min(1, opts.Jitter))
	if opts.Generator == nil {
		opts.Generator = NewGenerator(time.Now().UnixNano())
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LiveIngestor{
		importer: importer,
		opts:     opts,
		client:   client,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run fetches and imports until Count is reached (if >0) or ctx is cancelled.
func (li *LiveIngestor) Run(ctx context.Context) error {
	var ingested, failStreak int
	for {
		if li.opts.Count > 0 && ingested >= li.opts.Count {
			li.logger.Printf("live feed done: ingested=%d", ingested)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := li.fetchOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			failStreak++
			li.logger.Printf("fetch error (streak=%d): %v", failStreak, err)
			if err := li.sleep(ctx, li.backoff(failStreak)); err != nil {
				return err
			}
			continue
		}
		failStreak = 0

		res := li.importer.Import(ctx, []json.RawMessage{raw})
		if res.Ingested > 0 {
			ingested++
		} else if len(res.Errors) > 0 {
			li.logger.Printf("import error: %s", res.Errors[0])
		}

		if err := li.sleep(ctx, li.applyJitter(li.opts.Interval)); err != nil {
			return err
		}
	}
}

// fetchOnce returns the next raw lead record.
func (li *LiveIngestor) fetchOnce(ctx context.Context) ([]byte, error) {
	if li.opts.URL == "" {
		return json.Marshal(li.opts.Generator.Lead())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, li.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := li.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.New(resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	trim := strings.TrimSpace(string(data))
	if trim == "" {
		return nil, errors.New("empty response body")
	}
	return []byte(trim), nil
}

func (li *LiveIngestor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff is 1s doubled per consecutive failure, capped at 30s, with jitter.
func (li *LiveIngestor) backoff(failStreak int) time.Duration {
	d := time.Duration(float64(time.Second) * math.Pow(2, float64(failStreak-1)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return li.applyJitter(d)
}

func (li *LiveIngestor) applyJitter(d time.Duration) time.Duration {
	if li.opts.Jitter <= 0 {
		return d
	}
	frac := (li.rng.Float64()*2 - 1) * li.opts.Jitter
	adjust := math.Max(0.1, 1+frac)
	return time.Duration(float64(d) * adjust)
}
