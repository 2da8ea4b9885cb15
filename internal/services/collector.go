package services

import (
	"context"
	"log"
	"strings"
	"time"
)

// Fixed texts for degenerate batches and catastrophic failures.
const (
	emptyBatchText     = "(Empty or unreadable message)"
	systemFailureReply = "Thank you for your message. I am unable to fetch your details accurately at the moment. Our team will contact you soon to assist you further."
)

// debounceWindow is how long a collector waits for more items before
// draining the batch.
const debounceWindow = 6 * time.Second

// batchTimeout bounds one full batch run, external calls included.
const batchTimeout = 5 * time.Minute

// Scheduler runs a task in the background. jobs.Pool satisfies it.
type Scheduler interface {
	Submit(task func())
}

// Collector coordinates the buffered batching flow: it accepts inbound
// items, schedules at most one debounced collector job per user, and runs
// the drained batch through normalization, the pipeline and delivery.
type Collector struct {
	buffer     *MessageBuffer
	normalizer *Normalizer
	pipeline   *Pipeline
	dispatcher *Dispatcher
	scheduler  Scheduler

	debounce time.Duration
	sleep    func(time.Duration)
}

// NewCollector wires the batching flow together
func NewCollector(buffer *MessageBuffer, normalizer *Normalizer, pipeline *Pipeline, dispatcher *Dispatcher, scheduler Scheduler) *Collector {
	return &Collector{
		buffer:     buffer,
		normalizer: normalizer,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		debounce:   debounceWindow,
		sleep:      time.Sleep,
	}
}

// Seen records the inbound message id and reports whether it is new.
// Redelivered webhook events return false and must be dropped before
// enqueue.
func (c *Collector) Seen(messageID string) bool {
	return c.buffer.MarkSeen(messageID)
}

// Enqueue buffers one inbound item for the user and schedules a collector
// job unless one is already scheduled or running. The webhook handler
// returns immediately after this.
func (c *Collector) Enqueue(userID string, item Item) {
	c.buffer.Push(userID, item)

	if c.buffer.TryAcquireCollector(userID) {
		log.Printf("🚀 Starting batch collector for %s", userID)
		c.scheduler.Submit(func() {
			c.CollectAndProcess(userID)
		})
	} else {
		log.Printf("📥 Buffering item for %s (collector active)", userID)
	}
}

// CollectAndProcess waits out the debounce window, drains the user's queue
// and runs the whole batch through the pipeline, ending in exactly one
// outbound reply, or a logged silent drop when the drain came up empty.
func (c *Collector) CollectAndProcess(userID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Batch run panicked for %s: %v", userID, r)
			c.dispatcher.Deliver(userID, systemFailureReply)
		}
	}()

	log.Printf("⏳ Collector started for %s. Waiting %s...", userID, c.debounce)
	c.sleep(c.debounce)

	items := c.buffer.Drain(userID)
	c.buffer.ReleaseCollector(userID)

	if len(items) == 0 {
		log.Printf("⚠️ Batch empty for %s, dropping", userID)
		return
	}
	log.Printf("📦 Batch processing: %d items for %s", len(items), userID)

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	// Normalize each item in enqueue order. A failed item contributes
	// nothing; the survivors keep their order.
	var parts []string
	for _, item := range items {
		if text := strings.TrimSpace(c.normalizer.Normalize(ctx, item)); text != "" {
			parts = append(parts, text)
		}
	}

	unified := strings.Join(parts, "\n\n")
	if unified == "" {
		// The pipeline still runs so the model decides how to answer silence.
		unified = emptyBatchText
	}
	log.Printf("📝 Unified context for %s: %.100s", userID, unified)

	reply, err := c.pipeline.Process(ctx, userID, unified)
	if err != nil {
		kind := "terminal"
		if IsTransient(err) {
			kind = "transient"
		}
		log.Printf("❌ Pipeline failed for %s (%s): %v", userID, kind, err)
		c.dispatcher.Deliver(userID, systemFailureReply)
		return
	}

	c.dispatcher.Deliver(userID, reply)
}
