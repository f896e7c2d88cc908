// Package gpusim simulates a roster of accelerators and derives a correlated
// DCGM-style telemetry snapshot for each one on every update pass.
package gpusim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/config"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coefficients are the fixed affine relationships between utilization and
// the dependent metrics. Jitter fields are half-widths of uniform noise.
type Coefficients struct {
	UtilOffset float64
	UtilJitter float64

	MemCopyMin, MemCopyMax float64
	MemBaseFraction        float64
	MemUtilFraction        float64

	TempUtilGain     float64
	TempJitter       float64
	MemTempDeltaMin  float64
	MemTempDeltaMax  float64
	PowerUtilGain    float64
	PowerJitter      float64
	SMClockBase      float64
	SMClockGain      float64
	SMClockJitter    float64
	MemClockBase     float64
	MemClockGain     float64
	MemClockJitter   float64
	PCIeTXGain       float64
	PCIeRXGain       float64
	PCIeJitter       float64
	NVLinkGain       float64
	NVLinkJitter     float64
	TensorMin        float64
	TensorMax        float64
	DRAMMin, DRAMMax float64
}

// DefaultCoefficients models a GB10 superchip under ML workloads
func DefaultCoefficients() Coefficients {
	return Coefficients{
		UtilOffset:      30,
		UtilJitter:      5,
		MemCopyMin:      0.3,
		MemCopyMax:      0.6,
		MemBaseFraction: 0.3,
		MemUtilFraction: 0.5,
		TempUtilGain:    25,
		TempJitter:      2,
		MemTempDeltaMin: 5,
		MemTempDeltaMax: 10,
		PowerUtilGain:   80,
		PowerJitter:     5,
		SMClockBase:     1500,
		SMClockGain:     800,
		SMClockJitter:   50,
		MemClockBase:    1600,
		MemClockGain:    400,
		MemClockJitter:  20,
		PCIeTXGain:      15_000_000,
		PCIeRXGain:      12_000_000,
		PCIeJitter:      100_000,
		NVLinkGain:      200,
		NVLinkJitter:    10,
		TensorMin:       0.7,
		TensorMax:       0.95,
		DRAMMin:         0.4,
		DRAMMax:         0.7,
	}
}

// Options configures a Simulator
type Options struct {
	Devices        []config.DeviceConfig
	UpdateInterval time.Duration
	WorkloadPeriod time.Duration
	MinUtilization float64
	MaxUtilization float64
	Coefficients   *Coefficients
	Source         *random.Source
	Clock          func() time.Time
}

// deviceState is one simulated accelerator. The baseline fields are drawn
// once and never change.
type deviceState struct {
	identity models.Device

	baseUtil  float64
	baseTemp  float64
	basePower float64

	metrics    models.DeviceMetrics
	lastUpdate time.Time
}

// Simulator owns the device roster and its update loop
type Simulator struct {
	mu      sync.RWMutex
	devices []*deviceState

	coeff    Coefficients
	rng      *random.Source
	now      func() time.Time
	interval time.Duration
	period   time.Duration
	minUtil  float64
	maxUtil  float64

	logger *logger.Logger
	stopCh chan struct{}
	once   sync.Once
}

// NewSimulator builds the roster and runs a first update pass so the
// snapshot is populated before the first scrape.
func NewSimulator(opts Options, log *logger.Logger) *Simulator {
	if opts.Source == nil {
		opts.Source = random.New(0)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 5 * time.Second
	}
	if opts.WorkloadPeriod <= 0 {
		opts.WorkloadPeriod = 6 * time.Minute
	}
	if opts.MinUtilization == 0 && opts.MaxUtilization == 0 {
		opts.MinUtilization, opts.MaxUtilization = 10, 99
	}
	coeff := DefaultCoefficients()
	if opts.Coefficients != nil {
		coeff = *opts.Coefficients
	}

	s := &Simulator{
		coeff:    coeff,
		rng:      opts.Source,
		now:      opts.Clock,
		interval: opts.UpdateInterval,
		period:   opts.WorkloadPeriod,
		minUtil:  opts.MinUtilization,
		maxUtil:  opts.MaxUtilization,
		logger:   log,
		stopCh:   make(chan struct{}),
	}

	for _, dev := range opts.Devices {
		state := &deviceState{
			identity: models.Device{
				UUID:       "GPU-" + uuid.NewString(),
				Index:      dev.GPUIndex,
				DeviceName: fmt.Sprintf("nvidia%d", dev.GPUIndex),
				Model:      dev.Model,
				Hostname:   dev.Hostname,
			},
			baseUtil:  s.rng.Uniform(60, 90),
			baseTemp:  s.rng.Uniform(45, 55),
			basePower: s.rng.Uniform(80, 120),
		}
		state.metrics.FBTotalMiB = dev.MemoryMiB
		s.devices = append(s.devices, state)

		log.Debug("Device created",
			zap.String("hostname", state.identity.Hostname),
			zap.String("uuid", state.identity.UUID),
			zap.Float64("base_util", state.baseUtil),
		)
	}

	s.Update()
	return s
}

// Start starts the periodic update loop
func (s *Simulator) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Update()
			case <-s.stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	s.logger.Info("Device update loop started",
		zap.Duration("interval", s.interval),
		zap.Int("gpus", len(s.devices)),
	)
}

// Stop stops the update loop. It is safe to call more than once.
func (s *Simulator) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// DeviceCount returns the roster size
func (s *Simulator) DeviceCount() int {
	return len(s.devices)
}

// Health returns the health payload
func (s *Simulator) Health() models.DeviceHealth {
	return models.DeviceHealth{
		Status:  "healthy",
		Service: "gpu-simulator",
		GPUs:    s.DeviceCount(),
	}
}

// Devices returns the immutable identities of the roster
func (s *Simulator) Devices() []models.Device {
	out := make([]models.Device, len(s.devices))
	for i, dev := range s.devices {
		out[i] = dev.identity
	}
	return out
}

// Snapshot returns a consistent copy of every device's metrics
func (s *Simulator) Snapshot() []models.DeviceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DeviceSnapshot, len(s.devices))
	for i, dev := range s.devices {
		out[i] = models.DeviceSnapshot{Device: dev.identity, Metrics: dev.metrics}
	}
	return out
}

// WorkloadFactor is the slow oscillation in [0,1] that models workload phases
func (s *Simulator) WorkloadFactor(t time.Time) float64 {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return 0.5 + 0.5*math.Sin(2*math.Pi*seconds/s.period.Seconds())
}

// Update runs one correlated update pass over every device
func (s *Simulator) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	factor := s.WorkloadFactor(now)

	for _, dev := range s.devices {
		s.updateDevice(dev, factor, now)
	}
}

func (s *Simulator) updateDevice(dev *deviceState, factor float64, now time.Time) {
	c := &s.coeff
	m := &dev.metrics

	util := clamp(dev.baseUtil*factor+s.rng.Uniform(-c.UtilJitter, c.UtilJitter)+c.UtilOffset, s.minUtil, s.maxUtil)
	load := util / 100

	m.GPUUtil = clampPercent(util)
	m.MemCopyUtil = clampPercent(util * s.rng.Uniform(c.MemCopyMin, c.MemCopyMax))

	used := int64(float64(m.FBTotalMiB) * (c.MemBaseFraction + c.MemUtilFraction*load))
	if used > m.FBTotalMiB {
		used = m.FBTotalMiB
	}
	if used < 0 {
		used = 0
	}
	m.FBUsedMiB = used
	m.FBFreeMiB = m.FBTotalMiB - used

	m.GPUTemp = dev.baseTemp + load*c.TempUtilGain + s.rng.Uniform(-c.TempJitter, c.TempJitter)
	m.MemoryTemp = m.GPUTemp - s.rng.Uniform(c.MemTempDeltaMin, c.MemTempDeltaMax)

	m.PowerUsage = math.Max(0, dev.basePower+load*c.PowerUtilGain+s.rng.Uniform(-c.PowerJitter, c.PowerJitter))

	elapsed := s.interval
	if !dev.lastUpdate.IsZero() {
		elapsed = now.Sub(dev.lastUpdate)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	m.EnergyMilliJ += m.PowerUsage * elapsed.Seconds() * 1000
	dev.lastUpdate = now

	m.SMClockMHz = nonNegative(c.SMClockBase + load*c.SMClockGain + s.rng.Uniform(-c.SMClockJitter, c.SMClockJitter))
	m.MemClockMHz = nonNegative(c.MemClockBase + load*c.MemClockGain + s.rng.Uniform(-c.MemClockJitter, c.MemClockJitter))

	m.PCIeTXKBps = nonNegative(load*c.PCIeTXGain + s.rng.Uniform(-c.PCIeJitter, c.PCIeJitter))
	m.PCIeRXKBps = nonNegative(load*c.PCIeRXGain + s.rng.Uniform(-c.PCIeJitter, c.PCIeJitter))
	m.NVLinkGBps = math.Max(0, load*c.NVLinkGain+s.rng.Uniform(-c.NVLinkJitter, c.NVLinkJitter))

	m.TensorActive = clampPercent(util * s.rng.Uniform(c.TensorMin, c.TensorMax))
	m.DRAMActive = clampPercent(util * s.rng.Uniform(c.DRAMMin, c.DRAMMax))

	// no fault injection yet
	m.ECCSingleBit = 0
	m.ECCDoubleBit = 0
	m.XIDErrors = 0

	m.UpdatedAt = now
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func clampPercent(v float64) float64 {
	return clamp(v, 0, 100)
}

func nonNegative(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v)
}
