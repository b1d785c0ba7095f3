// Package ingest imports leads into the development store from files, HTTP
// payloads and a live feed.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/nilcar/leads-console/internal/bus"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/metrics"
)

// LeadSink persists one lead. *store.Store satisfies it.
type LeadSink interface {
	SaveLead(ctx context.Context, l lead.Lead) (int64, error)
}

// Result summarizes one import call.
type Result struct {
	Ingested int      `json:"ingested"`
	Failed   int      `json:"failed"`
	IDs      []int64  `json:"ids"`
	Errors   []string `json:"errors,omitempty"`
}

// maxReportedErrors bounds Result.Errors for large payloads.
const maxReportedErrors = 20

// Importer parses, saves and announces leads.
type Importer struct {
	parser *Parser
	sink   LeadSink
	bus    bus.Bus
	logger *log.Logger

	mu       sync.Mutex
	ingested int
	failed   int
}

// NewImporter wires an importer. A nil bus disables change notifications.
func NewImporter(parser *Parser, sink LeadSink, b bus.Bus, logger *log.Logger) *Importer {
	if parser == nil {
		parser = NewParser()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Importer{parser: parser, sink: sink, bus: b, logger: logger}
}

// Import saves every valid record and skips the rest. One leads.changed event
// is published per call that stored at least one lead.
func (im *Importer) Import(ctx context.Context, records []json.RawMessage) Result {
	res := Result{IDs: []int64{}}
	for i, raw := range records {
		if ctx.Err() != nil {
			break
		}
		l, err := im.parser.ParseLead(raw)
		if err == nil {
			var id int64
			id, err = im.sink.SaveLead(ctx, l)
			if err == nil {
				res.Ingested++
				res.IDs = append(res.IDs, id)
				metrics.LeadsIngestedTotal.WithLabelValues("ok").Inc()
				continue
			}
		}
		res.Failed++
		metrics.LeadsIngestedTotal.WithLabelValues("failed").Inc()
		im.logger.Printf("record %d rejected: %v", i+1, err)
		if len(res.Errors) < maxReportedErrors {
			res.Errors = append(res.Errors, "record "+strconv.Itoa(i+1)+": "+err.Error())
		}
	}

	im.mu.Lock()
	im.ingested += res.Ingested
	im.failed += res.Failed
	im.mu.Unlock()

	if res.Ingested > 0 && im.bus != nil {
		// Best-effort publish (no-op on NullBus)
		if err := im.bus.Publish(ctx, bus.Event{Kind: bus.KindLeadsChanged, Subject: strconv.Itoa(res.Ingested)}); err != nil {
			im.logger.Printf("publish leads.changed: %v", err)
		}
	}
	return res
}

// ImportLeads saves already-built leads, e.g. generated demo data.
func (im *Importer) ImportLeads(ctx context.Context, leads []lead.Lead) Result {
	records := make([]json.RawMessage, 0, len(leads))
	for _, l := range leads {
		raw, err := json.Marshal(l)
		if err != nil {
			im.logger.Printf("encode lead %q: %v", l.Name, err)
			continue
		}
		records = append(records, raw)
	}
	return im.Import(ctx, records)
}

// Totals reports the running counts since construction.
func (im *Importer) Totals() (ingested, failed int) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.ingested, im.failed
}
