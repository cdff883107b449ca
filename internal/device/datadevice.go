package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optiqlab/scopecore/internal/driver"
	"github.com/optiqlab/scopecore/internal/stream"
	"github.com/optiqlab/scopecore/internal/trigger"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// fanoutQueueSize bounds the frame-ready queue between the driver's
// timing context and the fan-out loop.
const fanoutQueueSize = 256

// Recorder persists acquisition bookkeeping. Implemented by the
// storage layer; a nil Recorder disables recording.
type Recorder interface {
	SessionStarted(device string, mode trigger.Mode, ttype trigger.Type, at time.Time) int64
	SessionEnded(sessionID int64, frames uint64, at time.Time)
	SubscriptionClosed(device, connectionID, reason string, stats stream.BufferStats)
}

// Close reasons recorded for subscription statistics.
const (
	CloseReasonUnsubscribe      = "unsubscribe"
	CloseReasonTransportFailure = "transport_failure"
	CloseReasonShutdown         = "shutdown"
)

// DataDevice is a frame-producing device. It owns the trigger state
// machine and the subscriber registry, and bridges the hardware-paced
// producer to the independently paced delivery path of every
// subscriber. The driver callback never touches the registry directly:
// it stamps the frame and enqueues it onto the device's own fan-out
// loop.
type DataDevice struct {
	*Device

	src      driver.FrameSource
	state    *trigger.State
	registry *stream.Registry
	recorder Recorder

	bufferCapacity int

	// opMu serializes the state-mutating operations so a transition is
	// never observed half-applied.
	opMu sync.Mutex

	frameCh chan *stream.Frame
	done    chan struct{}
	wg      sync.WaitGroup

	sessionMu sync.Mutex
	sessionID int64
}

func NewDataDevice(name string, profile *types.InstrumentProfileDefinition, src driver.FrameSource, recorder Recorder, logger *zap.Logger) *DataDevice {
	capacity := stream.DefaultBufferCapacity
	if profile.Triggering != nil && profile.Triggering.BufferCapacity > 0 {
		capacity = profile.Triggering.BufferCapacity
	}

	d := &DataDevice{
		Device:         NewDevice(name, profile, src, logger),
		src:            src,
		state:          trigger.NewState(src.SupportedTriggerCombinations()),
		registry:       stream.NewRegistry(),
		recorder:       recorder,
		bufferCapacity: capacity,
		frameCh:        make(chan *stream.Frame, fanoutQueueSize),
		done:           make(chan struct{}),
	}

	src.SetFrameHandler(d.onFrameProduced)
	src.SetFaultHandler(d.onFault)

	d.wg.Add(1)
	go d.fanoutLoop()

	return d
}

// Arm validates the trigger combination, resets the sequence counter
// and configures the hardware.
func (d *DataDevice) Arm(mode trigger.Mode, ttype trigger.Type) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.state.Arm(mode, ttype); err != nil {
		return err
	}
	if err := d.src.Arm(mode, ttype); err != nil {
		// Hardware refused; roll the state machine back to Idle.
		d.state.Stop()
		return fmt.Errorf("driver arm failed: %w", err)
	}

	d.sessionMu.Lock()
	if d.recorder != nil {
		d.sessionID = d.recorder.SessionStarted(d.Name, mode, ttype, time.Now())
	}
	d.sessionMu.Unlock()

	d.logger.Info("Device armed",
		zap.String("device", d.Name),
		zap.String("mode", string(mode)),
		zap.String("type", string(ttype)))
	return nil
}

// Trigger starts a software-initiated acquisition cycle.
func (d *DataDevice) Trigger() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.state.Trigger(); err != nil {
		return err
	}
	if err := d.src.StartCapture(); err != nil {
		d.state.Stop()
		return fmt.Errorf("driver capture failed: %w", err)
	}
	return nil
}

// Stop gracefully ends the acquisition and returns the device to Idle.
func (d *DataDevice) Stop() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.state.Stop(); err != nil {
		return err
	}
	d.src.StopCapture()
	d.endSession()

	d.logger.Info("Device stopped", zap.String("device", d.Name))
	return nil
}

// Abort tears down the acquisition immediately; an in-flight frame may
// be discarded.
func (d *DataDevice) Abort() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.state.Abort(); err != nil {
		return err
	}
	d.src.StopCapture()

	// Discard anything still queued for fan-out.
	for {
		select {
		case <-d.frameCh:
			continue
		default:
		}
		break
	}
	d.endSession()

	d.logger.Info("Device aborted", zap.String("device", d.Name))
	return nil
}

// Reset recovers a faulted device back to Idle via the driver.
func (d *DataDevice) Reset() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.state.Phase() != trigger.PhaseFault {
		return nil
	}
	if err := d.src.Recover(); err != nil {
		return fmt.Errorf("driver recovery failed: %w", err)
	}
	d.state.Reset()

	d.logger.Info("Device reset from fault", zap.String("device", d.Name))
	return nil
}

// SetProperty rejects writes while acquiring unless the property is
// declared live-adjustable.
func (d *DataDevice) SetProperty(name string, value any) error {
	if d.state.Phase() == trigger.PhaseFault {
		return fmt.Errorf("%w: %s", types.ErrDeviceFault, d.state.FaultReason())
	}
	if d.state.Phase() == trigger.PhaseAcquiring {
		if def := d.propertyDef(name); def == nil || !def.LiveAdjustable {
			return fmt.Errorf("%w: %s is not live-adjustable", types.ErrDeviceBusy, name)
		}
	}
	return d.Device.SetProperty(name, value)
}

// Subscribe registers a connection for the frame stream. Frames
// produced strictly after the registration are delivered; the
// fan-out pass already in progress is not joined.
func (d *DataDevice) Subscribe(connectionID string) (*stream.Registration, error) {
	reg, err := d.registry.Subscribe(connectionID, d.bufferCapacity)
	if err != nil {
		return nil, err
	}

	d.logger.Info("Client subscribed",
		zap.String("device", d.Name),
		zap.String("connection", connectionID),
		zap.String("subscription", reg.ID.String()),
		zap.Int("total_subscribers", d.registry.Len()))
	return reg, nil
}

// Unsubscribe removes a registration; no frame is delivered after it
// returns.
func (d *DataDevice) Unsubscribe(id uuid.UUID) error {
	reg, err := d.registry.Unsubscribe(id)
	if err != nil {
		return err
	}
	d.recordClose(reg, CloseReasonUnsubscribe)

	d.logger.Info("Client unsubscribed",
		zap.String("device", d.Name),
		zap.String("subscription", id.String()),
		zap.Int("total_subscribers", d.registry.Len()))
	return nil
}

// HandleTransportFailure drops the registration of a connection whose
// transport died. Other subscribers are unaffected.
func (d *DataDevice) HandleTransportFailure(connectionID string) {
	reg := d.registry.RemoveIfUnreachable(connectionID)
	if reg == nil {
		return
	}
	d.recordClose(reg, CloseReasonTransportFailure)

	d.logger.Warn("Subscriber transport failed, unsubscribed",
		zap.String("device", d.Name),
		zap.String("connection", connectionID),
		zap.Int("total_subscribers", d.registry.Len()))
}

// onFrameProduced runs on the driver's timing context. It stamps the
// sequence number and hands the frame to the fan-out loop without
// blocking the producer.
func (d *DataDevice) onFrameProduced(f *stream.Frame) {
	seq, accepted := d.state.NotifyFrame()
	if !accepted {
		// Stray callback after stop/abort.
		return
	}
	f.Device = d.Name
	f.Seq = seq

	select {
	case d.frameCh <- f:
	default:
		d.logger.Warn("Fan-out queue full, frame discarded",
			zap.String("device", d.Name),
			zap.Uint64("seq", seq))
	}

	// Single-shot acquisitions return to Idle after their frame. The
	// stop runs off this callback so the driver's capture goroutine is
	// never asked to join itself.
	if d.state.Phase() == trigger.PhaseIdle {
		go d.src.StopCapture()
	}
}

func (d *DataDevice) onFault(reason string) {
	d.state.Fault(reason)
	d.src.StopCapture()
	d.endSession()

	d.logger.Error("Device fault",
		zap.String("device", d.Name),
		zap.String("reason", reason))
}

// fanoutLoop delivers each produced frame into every buffer registered
// before the pass began. Enqueueing never blocks on a subscriber's
// transport; slow subscribers drop their own oldest frames.
func (d *DataDevice) fanoutLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case f := <-d.frameCh:
			for _, reg := range d.registry.Snapshot() {
				reg.Buffer.Push(f)
			}
		}
	}
}

func (d *DataDevice) endSession() {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()

	if d.recorder != nil && d.sessionID != 0 {
		d.recorder.SessionEnded(d.sessionID, d.state.Sequence(), time.Now())
		d.sessionID = 0
	}
}

func (d *DataDevice) recordClose(reg *stream.Registration, reason string) {
	if d.recorder != nil {
		d.recorder.SubscriptionClosed(d.Name, reg.ConnectionID, reason, reg.Buffer.Stats())
	}
}

func (d *DataDevice) propertyDef(name string) *types.PropertyDefinition {
	defs := d.Profile.Properties
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

func (d *DataDevice) Info() types.DeviceInfo {
	info := d.Device.Info()
	info.DataCapable = true
	return info
}

// TriggerState accessors used by the API surface.

func (d *DataDevice) Phase() trigger.Phase { return d.state.Phase() }

func (d *DataDevice) Sequence() uint64 { return d.state.Sequence() }

func (d *DataDevice) FaultReason() string { return d.state.FaultReason() }

func (d *DataDevice) SubscriberCount() int { return d.registry.Len() }

func (d *DataDevice) BufferCapacity() int { return d.bufferCapacity }

func (d *DataDevice) SupportedCombinations() []trigger.Combination {
	return d.src.SupportedTriggerCombinations()
}

// Shutdown stops acquisition, detaches all subscribers and ends the
// fan-out loop.
func (d *DataDevice) Shutdown() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.src.StopCapture()
	for _, reg := range d.registry.Snapshot() {
		d.recordClose(reg, CloseReasonShutdown)
	}
	d.registry.CloseAll()
	d.endSession()

	close(d.done)
	d.wg.Wait()
	return d.src.Shutdown()
}
