package pipeline

import "time"

// Stats are the run-level counters. They are owned by a single aggregator
// goroutine; stage workers send deltas over a channel instead of mutating
// shared state.
type Stats struct {
	FilesProcessed      int           `json:"files_processed"`
	FilesFailed         int           `json:"files_failed"`
	HyperlinksProcessed int           `json:"hyperlinks_processed"`
	HyperlinksUpdated   int           `json:"hyperlinks_updated"`
	Elapsed             time.Duration `json:"elapsed"`
}

// statDelta is one increment sent to the aggregator.
type statDelta struct {
	filesProcessed      int
	filesFailed         int
	hyperlinksProcessed int
	hyperlinksUpdated   int
}

// statCollector owns the Stats for one run.
type statCollector struct {
	deltas chan statDelta
	done   chan Stats
}

func newStatCollector() *statCollector {
	c := &statCollector{
		deltas: make(chan statDelta, 64),
		done:   make(chan Stats, 1),
	}
	go c.run()
	return c
}

func (c *statCollector) run() {
	var s Stats
	for d := range c.deltas {
		s.FilesProcessed += d.filesProcessed
		s.FilesFailed += d.filesFailed
		s.HyperlinksProcessed += d.hyperlinksProcessed
		s.HyperlinksUpdated += d.hyperlinksUpdated
	}
	c.done <- s
}

func (c *statCollector) add(d statDelta) {
	c.deltas <- d
}

// finish closes the delta stream and returns the final totals.
func (c *statCollector) finish() Stats {
	close(c.deltas)
	return <-c.done
}
