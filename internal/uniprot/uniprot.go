// Package uniprot looks up protein function annotations for human gene
// symbols through the UniProt REST search endpoint.
package uniprot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sctools/internal/logging"
	"sctools/internal/runutil"
)

// DefaultURL is the UniProtKB search endpoint.
const DefaultURL = "https://rest.uniprot.org/uniprotkb/search"

// NA marks a missing annotation.
const NA = "NA"

// Fields requested from the search endpoint.
const Fields = "cc_function,go_f"

// Annotation is the function text and GO molecular-function terms of the
// best hit for a symbol.
type Annotation struct {
	Gene                string
	Function            string
	GOMolecularFunction string
}

func missing(gene string) Annotation {
	return Annotation{Gene: gene, Function: NA, GOMolecularFunction: NA}
}

// Client queries UniProt. The zero value is not usable; use New.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
	cache   *runutil.LRU[string, Annotation]
}

// New returns a client with a cache of cacheSize symbols.
func New(baseURL string, cacheSize int, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Log:     logging.OrNop(log),
		cache:   runutil.NewLRU[string, Annotation](cacheSize),
	}
}

// Lookup returns the annotation for symbol. Any failure, and any empty
// field, yields NA.
func (c *Client) Lookup(ctx context.Context, symbol string) Annotation {
	if a, ok := c.cache.Get(symbol); ok {
		return a
	}
	a, err := c.fetch(ctx, symbol)
	if err != nil {
		c.Log.Warn("uniprot lookup failed", zap.String("gene", symbol), zap.Error(err))
		return missing(symbol)
	}
	c.cache.Add(symbol, a)
	return a
}

func (c *Client) fetch(ctx context.Context, symbol string) (Annotation, error) {
	q := url.Values{}
	q.Set("query", symbol+" AND HUMAN")
	q.Set("fields", Fields)
	q.Set("format", "tsv")
	q.Set("size", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Annotation{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Annotation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Annotation{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseTSV(symbol, resp.Body)
}

// parseTSV reads the first data row after the header.
func parseTSV(symbol string, r io.Reader) (Annotation, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	a := missing(symbol)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return a, err
		}
		return a, errors.New("empty response")
	}
	if !sc.Scan() {
		return a, sc.Err()
	}
	f := strings.Split(sc.Text(), "\t")
	if len(f) > 0 && strings.TrimSpace(f[0]) != "" {
		a.Function = strings.TrimSpace(f[0])
	}
	if len(f) > 1 && strings.TrimSpace(f[1]) != "" {
		a.GOMolecularFunction = strings.TrimSpace(f[1])
	}
	return a, nil
}

// LookupAll annotates symbols with at most workers requests in flight.
// The result is in input order.
func (c *Client) LookupAll(ctx context.Context, symbols []string, workers int) ([]Annotation, error) {
	out := make([]Annotation, len(symbols))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(runutil.EffectiveWorkers(workers, len(symbols)))
	for i, s := range symbols {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			out[i] = c.Lookup(ectx, s)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}
