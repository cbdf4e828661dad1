package uploads

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the initial capacity of the pending list.
const DefaultQueueSize = 128

// Cleaner deletes upload files on a single background goroutine. Paths are
// kept until the worker gets to them, so a bulk delete never loses any.
// Removal is best effort: failures are logged and never retried.
type Cleaner struct {
	dir    string
	logger *logrus.Logger

	mu      sync.Mutex
	pending []string
	stopped bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func NewCleaner(dir string, queueSize int, logger *logrus.Logger) *Cleaner {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Cleaner{
		dir:     dir,
		logger:  logger,
		pending: make([]string, 0, queueSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (c *Cleaner) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.wake:
				c.drain()
			case <-c.done:
				c.drain()
				return
			}
		}
	}()
}

// Enqueue schedules removal of a public upload path. Paths outside the
// upload prefix are ignored. It never blocks on the worker.
func (c *Cleaner) Enqueue(publicPath string) {
	if publicPath == "" {
		return
	}
	if _, ok := localName(publicPath); !ok {
		c.logger.WithField("path", publicPath).Debug("Skipping cleanup of non-upload path")
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.logger.WithField("path", publicPath).Warn("Cleaner stopped, leaving file in place")
		return
	}
	c.pending = append(c.pending, publicPath)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Stop removes everything still pending and waits for the worker to exit.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.done)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Cleaner) drain() {
	for {
		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, p := range batch {
			c.remove(p)
		}
	}
}

func (c *Cleaner) remove(publicPath string) {
	name, ok := localName(publicPath)
	if !ok {
		return
	}
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
		c.logger.WithError(err).WithField("path", publicPath).Warn("Failed to remove upload")
		return
	}
	c.logger.WithField("path", publicPath).Debug("Upload removed")
}
