package review

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/matsen/litreview/internal/logging"
)

// commandRunner runs an external command and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Containers tracks docker containers started by endpoints during an
// operation. StopAll stops them when the operation ends.
type Containers struct {
	mu     sync.Mutex
	byID   map[string]string // container ID -> image
	run    commandRunner
	logger *logging.Logger
}

// NewContainers returns an empty registry that stops containers through
// the docker CLI.
func NewContainers(logger *logging.Logger) *Containers {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Containers{byID: make(map[string]string), run: execRunner, logger: logger}
}

// Register records a running container.
func (c *Containers) Register(image, containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[containerID] = image
}

// Images returns the images of the registered containers, sorted.
func (c *Containers) Images() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool)
	var images []string
	for _, img := range c.byID {
		if !seen[img] {
			seen[img] = true
			images = append(images, img)
		}
	}
	sort.Strings(images)
	return images
}

// StopAll stops every registered container and clears the registry.
// Failures are returned as a ServiceError after all stops were attempted.
func (c *Containers) StopAll(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	c.byID = make(map[string]string)
	c.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	var failed []string
	var lastErr error
	for _, id := range ids {
		out, err := c.run(ctx, "docker", "stop", id)
		if err != nil {
			c.logger.Warn("stopping container failed", "container", id, "output", strings.TrimSpace(string(out)))
			failed = append(failed, id)
			lastErr = err
			continue
		}
		c.logger.Debug("stopped container", "container", id)
	}
	if len(failed) > 0 {
		return &ServiceError{Service: "docker stop " + strings.Join(failed, " "), Err: lastErr}
	}
	return nil
}
