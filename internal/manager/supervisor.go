package manager

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const readyPollInterval = 100 * time.Millisecond

// supervisor spawns and watches llama-server subprocesses. Each start
// returns a *process handle owned by the supervisor's watch goroutine;
// everyone else reads immutable snapshots.
type supervisor struct {
	bin             string
	maxRestarts     int
	backoff         time.Duration
	backoffCap      time.Duration
	startupDeadline time.Duration
	healthInterval  time.Duration
	healthTimeout   time.Duration
	stopGrace       time.Duration

	httpClient *http.Client
	log        zerolog.Logger
	publisher  EventPublisher
	// onGiveUp releases the registry entry when an instance exhausts its
	// restart budget.
	onGiveUp func(*process)
}

// process is one supervised llama-server. The current Instance snapshot is
// swapped atomically under mu; cmd and exit bookkeeping are only touched by
// spawn (start/watch goroutine) and stop.
type process struct {
	sup  *supervisor
	spec launchSpec
	logs *ringBuffer

	mu      sync.Mutex
	cur     Instance
	cmd     *exec.Cmd
	exited  chan struct{} // closed by the waiter of the current cmd
	exitErr error

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{} // watch loop exited
}

// start spawns the subprocess and blocks until it is healthy or the startup
// deadline passes. On success the returned process is Running and watched.
func (s *supervisor) start(ctx context.Context, spec launchSpec) (*process, error) {
	p := &process{
		sup:    s,
		spec:   spec,
		logs:   newRingBuffer(defaultLogLines),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		cur: Instance{
			Assignment: spec.Assignment,
			ModelID:    spec.ModelID,
			ModelName:  spec.ModelName,
			Port:       spec.Port,
			State:      StateStarting,
			BaseURL:    fmt.Sprintf("http://%s:%d", spec.Host, spec.Port),
		},
	}
	if err := p.spawn(); err != nil {
		p.update(func(i *Instance) { i.State = StateStopped; i.LastErr = err.Error() })
		close(p.done)
		return nil, launchError{model: spec.ModelID, cause: err}
	}
	s.publish("instance_start", p, map[string]any{"pid": p.Snapshot().PID, "port": spec.Port})

	if err := p.awaitReady(ctx); err != nil {
		p.terminate()
		p.update(func(i *Instance) { i.State = StateStopped; i.LastErr = err.Error() })
		close(p.done)
		s.publish("instance_start_failed", p, map[string]any{"error": err.Error()})
		return nil, err
	}

	p.update(func(i *Instance) {
		i.State = StateRunning
		i.StartedAt = time.Now()
		i.LastErr = ""
	})
	s.publish("instance_ready", p, map[string]any{"pid": p.Snapshot().PID, "port": spec.Port})
	go p.watch()
	return p, nil
}

// stop gracefully terminates the subprocess: SIGTERM, bounded grace wait,
// then SIGKILL. Idempotent; safe to call from any state.
func (s *supervisor) stop(p *process) {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	if p.cur.State == StateStopped {
		p.mu.Unlock()
		return
	}
	p.cur = p.withLocked(func(i *Instance) { i.State = StateStopping })
	p.mu.Unlock()
	s.publish("instance_stop", p, nil)

	p.terminate()
	<-p.done
	// The watch loop may have respawned between our signal and its exit.
	p.terminate()
	p.update(func(i *Instance) { i.State = StateStopped; i.PID = 0 })
	s.publish("instance_stopped", p, nil)
}

// healthcheck probes a single instance once.
func (s *supervisor) healthcheck(p *process) Health {
	p.mu.Lock()
	exited := p.exited
	base := p.cur.BaseURL
	p.mu.Unlock()
	select {
	case <-exited:
		return Dead
	default:
	}
	if s.probeHealth(context.Background(), base) {
		return Healthy
	}
	return Unhealthy
}

func (s *supervisor) probeHealth(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (s *supervisor) publish(name string, p *process, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	s.publisher.Publish(Event{
		Name:    name,
		ModelID: p.spec.ModelID,
		GPU:     p.spec.Assignment.String(),
		Fields:  fields,
	})
}

// Snapshot returns the current immutable view of the instance.
func (p *process) Snapshot() Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Logs returns up to n recent subprocess output lines.
func (p *process) Logs(n int) []string { return p.logs.Tail(n) }

// update swaps in a new snapshot built from the current one.
func (p *process) update(mut func(*Instance)) {
	p.mu.Lock()
	p.cur = p.withLocked(mut)
	p.mu.Unlock()
}

func (p *process) withLocked(mut func(*Instance)) Instance {
	next := p.cur
	mut(&next)
	return next
}

// spawn launches llama-server and wires output capture and exit detection.
func (p *process) spawn() error {
	args := []string{"-m", p.spec.ModelPath, "--host", p.spec.Host, "--port", fmt.Sprint(p.spec.Port)}
	args = append(args, p.spec.Args...)
	cmd := exec.Command(p.sup.bin, args...)
	if !p.spec.Assignment.IsCPU() {
		cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES="+p.spec.Assignment.String())
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return fmt.Errorf("start %s: %w", p.sup.bin, err)
	}
	_ = w.Close() // child keeps its copy

	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 256*1024)
		for sc.Scan() {
			p.logs.Append(sc.Text())
		}
		_ = r.Close()
	}()

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(exited)
	}()

	p.mu.Lock()
	p.cmd = cmd
	p.exited = exited
	p.cur = p.withLocked(func(i *Instance) { i.PID = cmd.Process.Pid })
	p.mu.Unlock()
	p.sup.log.Info().Str("model", p.spec.ModelID).Str("gpu", p.spec.Assignment.String()).
		Int("pid", cmd.Process.Pid).Int("port", p.spec.Port).Msg("llama-server spawned")
	return nil
}

// awaitReady polls the health endpoint until the startup deadline, failing
// early when the process dies first.
func (p *process) awaitReady(ctx context.Context) error {
	deadline := time.After(p.sup.startupDeadline)
	p.mu.Lock()
	exited := p.exited
	base := p.cur.BaseURL
	p.mu.Unlock()
	for {
		select {
		case <-exited:
			p.mu.Lock()
			werr := p.exitErr
			p.mu.Unlock()
			tail := p.logs.TailString(20)
			if werr == nil {
				werr = fmt.Errorf("exited before ready")
			}
			return launchError{model: p.spec.ModelID, cause: fmt.Errorf("%v; output tail: %s", werr, tail)}
		case <-deadline:
			return ErrLaunchTimeout(p.spec.ModelID, p.logs.TailString(20))
		case <-p.stopCh:
			return launchError{model: p.spec.ModelID, cause: fmt.Errorf("stopped during startup")}
		case <-time.After(readyPollInterval):
		}
		if p.sup.probeHealth(ctx, base) {
			return nil
		}
	}
}

// watch drives the per-instance state machine after the first successful
// start: health transitions while the process lives, restart with backoff
// when it dies, crash-loop stop past the restart budget.
func (p *process) watch() {
	defer close(p.done)
	ticker := time.NewTicker(p.sup.healthInterval)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		exited := p.exited
		p.mu.Unlock()
		select {
		case <-p.stopCh:
			return
		case <-exited:
			if !p.restart() {
				return
			}
		case <-ticker.C:
			switch p.sup.healthcheck(p) {
			case Healthy:
				p.update(func(i *Instance) {
					if i.State == StateUnhealthy {
						i.State = StateRunning
						i.LastErr = ""
					}
				})
			case Unhealthy:
				if p.Snapshot().State == StateRunning {
					p.update(func(i *Instance) { i.State = StateUnhealthy })
					p.sup.publish("instance_unhealthy", p, nil)
				}
			case Dead:
				// handled by the exited case on the next iteration
			}
		}
	}
}

// restart respawns the subprocess with exponential backoff. Returns false
// when the watch loop should exit (budget exhausted or explicit stop).
func (p *process) restart() bool {
	p.mu.Lock()
	werr := p.exitErr
	p.mu.Unlock()
	exitMsg := "exited"
	if werr != nil {
		exitMsg = werr.Error()
	}
	p.update(func(i *Instance) { i.State = StateUnhealthy; i.LastErr = exitMsg })
	p.sup.publish("instance_exit", p, map[string]any{"error": exitMsg})
	p.sup.log.Warn().Str("model", p.spec.ModelID).Str("gpu", p.spec.Assignment.String()).
		Str("error", exitMsg).Msg("llama-server exited unexpectedly")

	for {
		snap := p.Snapshot()
		if snap.RestartCount >= p.sup.maxRestarts {
			err := crashLoopError{model: p.spec.ModelID, restarts: snap.RestartCount}
			p.update(func(i *Instance) {
				i.State = StateStopped
				i.PID = 0
				i.LastErr = err.Error()
			})
			p.sup.publish("instance_crash_loop", p, map[string]any{"restarts": snap.RestartCount})
			p.sup.log.Error().Str("model", p.spec.ModelID).Str("gpu", p.spec.Assignment.String()).
				Int("restarts", snap.RestartCount).Msg("giving up on crash-looping instance")
			restartsExhaustedTotal.Inc()
			if p.sup.onGiveUp != nil {
				p.sup.onGiveUp(p)
			}
			return false
		}

		p.update(func(i *Instance) {
			i.State = StateRestarting
			i.RestartCount++
		})
		attempt := p.Snapshot().RestartCount
		p.sup.publish("instance_restart", p, map[string]any{"attempt": attempt})
		restartsTotal.Inc()

		wait := backoffFor(p.sup.backoff, p.sup.backoffCap, attempt-1)
		select {
		case <-p.stopCh:
			return false
		case <-time.After(wait):
		}

		p.update(func(i *Instance) { i.State = StateStarting })
		if err := p.spawn(); err != nil {
			p.update(func(i *Instance) { i.LastErr = err.Error() })
			continue
		}
		if err := p.awaitReady(context.Background()); err != nil {
			p.terminate()
			p.update(func(i *Instance) { i.LastErr = err.Error() })
			continue
		}
		p.update(func(i *Instance) {
			i.State = StateRunning
			i.StartedAt = time.Now()
			i.LastErr = ""
		})
		p.sup.publish("instance_ready", p, map[string]any{"attempt": attempt})
		return true
	}
}

// terminate sends SIGTERM, waits the grace period, then SIGKILLs. Safe when
// the process already exited.
func (p *process) terminate() {
	p.mu.Lock()
	cmd := p.cmd
	exited := p.exited
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-exited:
		return
	default:
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(p.sup.stopGrace):
		_ = cmd.Process.Kill()
		<-exited
	}
}

// backoffFor computes min(base<<attempt, cap).
func backoffFor(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = time.Minute
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
