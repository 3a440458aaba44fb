package composition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/models"
)

// ErrNoProcess is returned when a wedding has no registered composer process.
var ErrNoProcess = errors.New("no composition process for wedding")

// Manager owns the lifecycle of the external ffmpeg composer that combines
// multiple camera sources into one feed. The process handle is registered in
// redis so health and stop work from any controller instance on the same host.
type Manager struct {
	ffmpegPath string
	grace      time.Duration
	registry   *Registry
	log        *zap.Logger
}

// NewManager creates a composition process manager.
func NewManager(ffmpegPath string, graceSeconds int, registry *Registry, log *zap.Logger) *Manager {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if graceSeconds <= 0 {
		graceSeconds = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		ffmpegPath: ffmpegPath,
		grace:      time.Duration(graceSeconds) * time.Second,
		registry:   registry,
		log:        log,
	}
}

// BuildComposeArgs builds the ffmpeg arguments that combine the camera
// sources into a single mp4. One source is remuxed as-is; multiple sources
// are stacked into a grid with the first source's audio.
func BuildComposeArgs(sources []string, outputPath string) []string {
	args := []string{}
	for _, src := range sources {
		args = append(args, "-i", src)
	}
	switch {
	case len(sources) <= 1:
		args = append(args, "-c", "copy")
	case len(sources) == 2:
		args = append(args,
			"-filter_complex", "[0:v][1:v]hstack=inputs=2[v]",
			"-map", "[v]", "-map", "0:a?",
			"-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac",
		)
	default:
		filter := ""
		for i := range sources {
			filter += fmt.Sprintf("[%d:v]", i)
		}
		filter += fmt.Sprintf("xstack=inputs=%d:layout=%s[v]", len(sources), xstackLayout(len(sources)))
		args = append(args,
			"-filter_complex", filter,
			"-map", "[v]", "-map", "0:a?",
			"-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac",
		)
	}
	args = append(args, "-y", outputPath)
	return args
}

// xstackLayout builds a two-column grid layout string for n inputs,
// e.g. "0_0|w0_0|0_h0|w0_h0" for four cameras.
func xstackLayout(n int) string {
	cells := make([]string, n)
	for i := 0; i < n; i++ {
		x := "0"
		if i%2 == 1 {
			x = "w0"
		}
		y := "0"
		if row := i / 2; row > 0 {
			parts := make([]string, row)
			for r := range parts {
				parts[r] = "h0"
			}
			y = strings.Join(parts, "+")
		}
		cells[i] = x + "_" + y
	}
	return strings.Join(cells, "|")
}

// Start launches the composer for a wedding and registers its handle.
// Returns the registry key of the handle.
func (m *Manager) Start(ctx context.Context, weddingID, jobID uuid.UUID, sources []string, outputPath string) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("no camera sources for wedding %s", weddingID)
	}
	// Not tied to the request ctx: the composer outlives the go-live call
	// and is stopped explicitly.
	cmd := exec.Command(m.ffmpegPath, BuildComposeArgs(sources, outputPath)...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start composer: %w", err)
	}
	go func() { _ = cmd.Wait() }()

	handle := &ProcessHandle{
		WeddingID:  weddingID,
		JobID:      jobID,
		PID:        cmd.Process.Pid,
		OutputPath: outputPath,
		Sources:    sources,
		Status:     models.CameraStatusActive,
		StartedAt:  time.Now(),
	}
	if err := m.registry.Save(ctx, handle); err != nil {
		_ = cmd.Process.Kill()
		return "", err
	}
	m.log.Info("composer started",
		zap.String("wedding_id", weddingID.String()),
		zap.Int("pid", handle.PID),
		zap.Int("sources", len(sources)))
	return Key(weddingID), nil
}

// HealthReport describes the state of a wedding's composer process.
type HealthReport struct {
	WeddingID   uuid.UUID `json:"wedding_id"`
	Status      string    `json:"status"`
	Alive       bool      `json:"alive"`
	PID         int       `json:"pid,omitempty"`
	OutputBytes int64     `json:"output_bytes"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

// Health reports whether the composer is alive and has produced output.
func (m *Manager) Health(ctx context.Context, weddingID uuid.UUID) (*HealthReport, error) {
	handle, err := m.registry.Get(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return &HealthReport{WeddingID: weddingID, Status: "inactive"}, nil
	}
	report := &HealthReport{
		WeddingID: weddingID,
		Status:    handle.Status,
		PID:       handle.PID,
		StartedAt: handle.StartedAt,
	}
	report.Alive = processAlive(handle.PID)
	if !report.Alive {
		report.Status = "dead"
	}
	if info, err := os.Stat(handle.OutputPath); err == nil {
		report.OutputBytes = info.Size()
	}
	return report, nil
}

// Stop terminates the composer for a wedding: SIGINT so ffmpeg finalizes the
// container, then SIGKILL after the grace period. The handle is always
// removed from the registry.
func (m *Manager) Stop(ctx context.Context, weddingID uuid.UUID) error {
	handle, err := m.registry.Get(ctx, weddingID)
	if err != nil {
		return err
	}
	if handle == nil {
		return ErrNoProcess
	}
	defer func() {
		if err := m.registry.Delete(ctx, weddingID); err != nil {
			m.log.Warn("delete composer handle failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		}
	}()

	proc, err := os.FindProcess(handle.PID)
	if err != nil {
		return nil
	}
	if !processAlive(handle.PID) {
		return nil
	}
	_ = proc.Signal(os.Interrupt)
	deadline := time.Now().Add(m.grace)
	for time.Now().Before(deadline) {
		if !processAlive(handle.PID) {
			m.log.Info("composer stopped", zap.String("wedding_id", weddingID.String()), zap.Int("pid", handle.PID))
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	_ = proc.Kill()
	m.log.Warn("composer killed after grace period", zap.String("wedding_id", weddingID.String()), zap.Int("pid", handle.PID))
	return nil
}

// processAlive probes the PID with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
