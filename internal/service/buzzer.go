package service

import (
	"os/exec"
	"strings"
	"sync"
	"time"

	"monitoring_station/internal/logger"
)

const (
	gpioFindCmd    = "gpiofind"
	gpioSetCmd     = "gpioset"
	buzzerLineName = "BUZZER_EN"

	// blinkFailureLimit is how many consecutive gpioset failures the
	// blink loop tolerates before giving up and forcing the line low.
	blinkFailureLimit    = 5
	defaultBlinkInterval = time.Second
)

// CommandRunner abstracts external command invocation so the GPIO
// tooling can be stubbed in tests.
type CommandRunner interface {
	// Output runs the command and returns stdout; a non-zero exit is an error.
	Output(name string, args ...string) ([]byte, error)
	// Run runs the command and reports its exit status.
	Run(name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

func (execRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// BuzzerService resolves the buzzer GPIO line once, caches it, and
// runs a blink loop while alerting is active. At most one blink
// goroutine exists at a time.
type BuzzerService struct {
	enabled       bool
	runner        CommandRunner
	blinkInterval time.Duration
	log           *logger.Logger

	mu   sync.Mutex
	stop chan struct{} // non-nil while the blink goroutine runs

	cacheMu sync.Mutex
	chip    string
	line    string
	cached  bool
}

func NewBuzzerService(enabled bool, log *logger.Logger) *BuzzerService {
	return &BuzzerService{
		enabled:       enabled,
		runner:        execRunner{},
		blinkInterval: defaultBlinkInterval,
		log:           log,
	}
}

// SetState turns blinking on or off. With the buzzer administratively
// disabled, off still tears down any running blink goroutine and the
// call reports success without touching hardware.
func (s *BuzzerService) SetState(on bool) bool {
	if !s.enabled {
		s.log.Debugw("buzzer_state_ignored_disabled", "on", on)
		if !on {
			s.stopBlinkTask()
		}
		return true
	}

	var ok bool
	if on {
		s.log.Infow("buzzer_on")
		ok = s.startBlinking()
	} else {
		s.log.Infow("buzzer_off")
		ok = s.stopBlinking()
	}
	if !ok {
		s.log.Errorw("buzzer_set_state_failed", "on", on)
	}
	return ok
}

func (s *BuzzerService) startBlinking() bool {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return true
	}
	if !s.setLevel(true) {
		s.mu.Unlock()
		return false
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.blink(stop)
	return true
}

func (s *BuzzerService) stopBlinking() bool {
	s.stopBlinkTask()
	return s.setLevel(false)
}

// stopBlinkTask cancels the blink goroutine without driving the line.
func (s *BuzzerService) stopBlinkTask() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()
}

// blink flips the line every interval until cancelled or until the
// hardware fails blinkFailureLimit times in a row. A self-terminated
// loop clears its task slot so a later SetState(true) starts fresh.
func (s *BuzzerService) blink(stop chan struct{}) {
	ticker := time.NewTicker(s.blinkInterval)
	defer ticker.Stop()

	level := true
	failures := 0
	for {
		select {
		case <-stop:
			return // stopBlinking drives the line low
		case <-ticker.C:
			level = !level
			if s.setLevel(level) {
				failures = 0
				continue
			}
			failures++
			s.log.Warnw("buzzer_toggle_failed", "level", level, "failures", failures)
			if failures >= blinkFailureLimit {
				s.log.Errorw("buzzer_blink_stopped_after_failures", "limit", blinkFailureLimit)
				s.setLevel(false)
				s.clearTask(stop)
				return
			}
		}
	}
}

// clearTask releases the task slot if it still belongs to this loop.
func (s *BuzzerService) clearTask(stop chan struct{}) {
	s.mu.Lock()
	if s.stop == stop {
		s.stop = nil
	}
	s.mu.Unlock()
}

func (s *BuzzerService) setLevel(on bool) bool {
	chip, line, ok := s.resolveLine()
	if !ok {
		return false
	}

	level := "0"
	if on {
		level = "1"
	}
	if err := s.runner.Run(gpioSetCmd, chip, line+"="+level); err != nil {
		s.log.Errorw("gpioset_failed", "err", err, "chip", chip, "line", line)
		s.invalidateLine()
		return false
	}
	return true
}

// resolveLine returns the cached (chip, line) pair or asks gpiofind.
// Failures are non-fatal; the next call retries resolution.
func (s *BuzzerService) resolveLine() (string, string, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cached {
		return s.chip, s.line, true
	}

	out, err := s.runner.Output(gpioFindCmd, buzzerLineName)
	if err != nil {
		s.log.Errorw("gpiofind_failed", "err", err)
		return "", "", false
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		s.log.Errorw("gpiofind_malformed_output", "output", string(out))
		return "", "", false
	}

	s.chip, s.line, s.cached = fields[0], fields[1], true
	return s.chip, s.line, true
}

// invalidateLine drops the cached location so the next hardware
// command re-resolves it.
func (s *BuzzerService) invalidateLine() {
	s.cacheMu.Lock()
	s.cached = false
	s.chip, s.line = "", ""
	s.cacheMu.Unlock()
}
