package useragent

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
)

// Rotator serves random User-Agent strings from a pool loaded once from a
// text file. The pool is process-wide and read-mostly; initialize it
// explicitly at startup rather than lazily in hot paths.
type Rotator struct {
	userAgents []string
}

var (
	defaultRotator *Rotator
	initMu         sync.Mutex
)

// Init loads the global rotator from the given file. One User-Agent per
// line; blank lines and lines starting with '#' are ignored.
func Init(path string) error {
	initMu.Lock()
	defer initMu.Unlock()

	rotator, err := NewFromFile(path)
	if err != nil {
		return err
	}
	defaultRotator = rotator
	return nil
}

// Default returns the global rotator. Init must have been called.
func Default() *Rotator {
	initMu.Lock()
	defer initMu.Unlock()
	return defaultRotator
}

// NewFromFile creates a rotator from a User-Agent text file.
func NewFromFile(path string) (*Rotator, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user agents file %s: %w", path, err)
	}
	defer file.Close()

	var userAgents []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		userAgents = append(userAgents, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user agents file %s: %w", path, err)
	}

	return New(userAgents)
}

// New creates a rotator over the given pool.
func New(userAgents []string) (*Rotator, error) {
	if len(userAgents) == 0 {
		return nil, fmt.Errorf("user agent pool cannot be empty")
	}
	return &Rotator{userAgents: userAgents}, nil
}

// Random returns a uniformly random User-Agent from the pool.
func (r *Rotator) Random() string {
	return r.userAgents[rand.IntN(len(r.userAgents))]
}

// Size returns the number of User-Agents in the pool.
func (r *Rotator) Size() int {
	return len(r.userAgents)
}
