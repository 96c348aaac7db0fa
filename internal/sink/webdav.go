package sink

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/studio-b12/gowebdav"
)

// warnQueueDepth is the job-count threshold above which the worker logs a
// warning that upload speed can't keep up (spec §5, ported from
// WebDavThread._queueJob's "Upload speed not enough" warning).
const warnQueueDepth = 5

// pollInterval is how often the worker checks an empty queue for new jobs.
const pollInterval = 200 * time.Millisecond

// metricsLogInterval is how often queue depth and put/delete/error counters
// are gathered and logged, in lieu of an HTTP scrape endpoint.
const metricsLogInterval = 30 * time.Second

type jobKind int

const (
	jobPut jobKind = iota
	jobDelete
)

type webdavJob struct {
	kind    jobKind
	relPath string
	data    []byte
}

// WebDAV queues puts and deletes and drains them from a single background
// goroutine, so the scheduler's real-time publish loop never blocks on
// network I/O (spec §5, §6 WebDAV destination).
type WebDAV struct {
	client *gowebdav.Client
	log    *slog.Logger
	metrics *webdavMetrics

	mu   sync.Mutex
	jobs []webdavJob

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWebDAV(rawURL, user, password string, log *slog.Logger) (*WebDAV, error) {
	if log == nil {
		log = slog.Default()
	}
	client := gowebdav.NewClient(rawURL, user, password)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("sink: connect to webdav %q: %w", rawURL, err)
	}
	if err := client.MkdirAll("", 0o755); err != nil {
		log.Warn("webdav mkdir root failed", "error", err)
	}

	w := &WebDAV{
		client:  client,
		log:     log,
		metrics: newWebdavMetrics(),
		done:    make(chan struct{}),
	}
	w.wg.Add(2)
	go w.run()
	go func() {
		defer w.wg.Done()
		w.metrics.logPeriodically(w.log, metricsLogInterval, w.done)
	}()
	return w, nil
}

func (w *WebDAV) Put(relPath string, data []byte) error {
	w.enqueue(webdavJob{kind: jobPut, relPath: relPath, data: data})
	return nil
}

func (w *WebDAV) Delete(relPath string) error {
	w.enqueue(webdavJob{kind: jobDelete, relPath: relPath})
	return nil
}

// Clean deletes the init segment and every remote media segment matching
// mediaPattern. It runs synchronously against the WebDAV client under the
// same lock the queue worker uses, rather than going through the job queue,
// matching WebDavThread.clean's blocking "clean before anything else is
// queued" behavior (filewriter.py:160-176).
func (w *WebDAV) Clean(initPath, mediaPattern string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.delete(initPath)

	dir, re, err := mediaPatternMatcher(mediaPattern)
	if err != nil {
		return err
	}

	entries, err := w.client.ReadDir(dir)
	if err != nil {
		return nil // nothing to clean if the directory doesn't exist yet
	}
	for _, e := range entries {
		if !re.MatchString(e.Name()) {
			continue
		}
		relPath := e.Name()
		if dir != "" {
			relPath = dir + "/" + e.Name()
		}
		w.delete(relPath)
	}
	return nil
}

func (w *WebDAV) Close() error {
	close(w.done)
	w.wg.Wait()
	return nil
}

func (w *WebDAV) enqueue(j webdavJob) {
	w.mu.Lock()
	w.jobs = append(w.jobs, j)
	depth := len(w.jobs)
	w.mu.Unlock()
	w.metrics.queueDepth.Set(float64(depth))
	if depth > warnQueueDepth {
		w.log.Warn("webdav upload queue backing up", "depth", depth)
	}
}

func (w *WebDAV) nextJob() (webdavJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.jobs) == 0 {
		return webdavJob{}, false
	}
	j := w.jobs[0]
	w.jobs = w.jobs[1:]
	w.metrics.queueDepth.Set(float64(len(w.jobs)))
	return j, true
}

func (w *WebDAV) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		default:
		}
		j, ok := w.nextJob()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		switch j.kind {
		case jobPut:
			w.put(j.relPath, j.data)
		case jobDelete:
			w.delete(j.relPath)
		}
	}
}

func (w *WebDAV) put(relPath string, data []byte) {
	if err := w.client.MkdirAll(dirOf(relPath), 0o755); err != nil {
		w.log.Warn("webdav mkdir failed", "path", relPath, "error", err)
	}
	if err := w.client.Write(relPath, data, 0o644); err != nil {
		w.metrics.errors.Inc()
		w.log.Error("webdav put failed", "path", relPath, "error", err)
		return
	}
	w.metrics.puts.Inc()
}

// delete removes relPath if it exists, matching WebDavThread.deleteFile's
// `if self.conn.exists(filePath): self.conn.delete(filePath)` guard — both
// the ordinary per-segment eviction and Clean's startup pass call this, and
// Clean in particular routinely targets files that were never there (a
// fresh destination has no init segment or prior media to remove).
func (w *WebDAV) delete(relPath string) {
	if _, err := w.client.Stat(relPath); err != nil {
		return
	}
	if err := w.client.Remove(relPath); err != nil {
		w.metrics.errors.Inc()
		w.log.Warn("webdav delete failed", "path", relPath, "error", err)
		return
	}
	w.metrics.deletes.Inc()
}

// mediaPatternMatcher splits a "$Number$"-carrying media path template into
// its directory and a regexp that matches bare file names in that directory
// (ported from WebDavThread.cleanFiles's `mediaReg = re.compile(...)`,
// filewriter.py:226-228).
func mediaPatternMatcher(mediaPattern string) (dir string, re *regexp.Regexp, err error) {
	dir = dirOf(mediaPattern)
	base := strings.TrimPrefix(mediaPattern[len(dir):], "/")
	pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(base), regexp.QuoteMeta("$Number$"), `\d+`) + "$"
	re, err = regexp.Compile(pattern)
	if err != nil {
		return "", nil, fmt.Errorf("sink: compile clean pattern %q: %w", pattern, err)
	}
	return dir, re, nil
}

func dirOf(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		if relPath[i] == '/' {
			return relPath[:i]
		}
	}
	return ""
}
