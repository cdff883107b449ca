package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/optiqlab/scopecore/internal/stream"
	"github.com/optiqlab/scopecore/internal/trigger"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

const defaultFramePeriod = 50 * time.Millisecond

// SimCamera is a simulated frame-producing instrument. It renders a
// synthetic mono8 pattern on its own goroutine, standing in for a
// hardware acquisition thread: software-initiated modes run off a
// timer, hardware-gated modes produce a frame per InjectEdge call.
type SimCamera struct {
	logger *zap.Logger
	defs   []types.PropertyDefinition
	combos []trigger.Combination

	mu          sync.Mutex
	props       map[string]any
	width       int
	height      int
	framePeriod time.Duration
	mode        trigger.Mode
	ttype       trigger.Type
	capturing   bool
	faulted     bool
	frameN      uint64
	stopChan    chan struct{}
	wg          sync.WaitGroup

	onFrame func(*stream.Frame)
	onFault func(reason string)
}

func NewSimCamera(profile *types.InstrumentProfileDefinition, logger *zap.Logger) (*SimCamera, error) {
	if profile.Triggering == nil || len(profile.Triggering.Combinations) == 0 {
		return nil, fmt.Errorf("camera profile %s declares no trigger combinations", profile.Profile.ID)
	}

	combos := make([]trigger.Combination, 0, len(profile.Triggering.Combinations))
	for _, c := range profile.Triggering.Combinations {
		mode, err := trigger.ParseMode(c.Mode)
		if err != nil {
			return nil, err
		}
		ttype, err := trigger.ParseType(c.Type)
		if err != nil {
			return nil, err
		}
		combos = append(combos, trigger.Combination{Mode: mode, Type: ttype})
	}

	c := &SimCamera{
		logger: logger,
		defs:   profile.Properties,
		combos: combos,
		props:  make(map[string]any),
		width:  640,
		height: 480,
	}
	for _, def := range profile.Properties {
		if def.Default != nil {
			c.props[def.Name] = def.Default
		}
	}
	if w, ok := c.props["width"]; ok {
		c.width = asInt(w)
	}
	if h, ok := c.props["height"]; ok {
		c.height = asInt(h)
	}
	c.framePeriod = defaultFramePeriod
	if profile.Triggering.FramePeriodMs > 0 {
		c.framePeriod = time.Duration(profile.Triggering.FramePeriodMs) * time.Millisecond
	}
	return c, nil
}

func (c *SimCamera) Kind() types.InstrumentKind { return types.KindCamera }

func (c *SimCamera) Properties() []types.PropertyDefinition { return c.defs }

func (c *SimCamera) SupportedTriggerCombinations() []trigger.Combination { return c.combos }

func (c *SimCamera) SetFrameHandler(fn func(*stream.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

func (c *SimCamera) SetFaultHandler(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFault = fn
}

func (c *SimCamera) ApplyProperty(name string, value any) error {
	def, ok := propertyDef(c.defs, name)
	if !ok {
		return fmt.Errorf("unknown property: %s", name)
	}
	if def.Access == types.AccessTypeReadOnly {
		return fmt.Errorf("property %s is read-only", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch def.DataType {
	case types.DataTypeFloat64:
		v := asFloat(value)
		if def.Min != nil && v < *def.Min {
			v = *def.Min
		}
		if def.Max != nil && v > *def.Max {
			v = *def.Max
		}
		c.props[name] = v
	case types.DataTypeInt:
		c.props[name] = asInt(value)
	default:
		c.props[name] = value
	}
	return nil
}

func (c *SimCamera) GetProperty(name string) (any, error) {
	if _, ok := propertyDef(c.defs, name); !ok {
		return nil, fmt.Errorf("unknown property: %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[name], nil
}

func (c *SimCamera) Arm(mode trigger.Mode, ttype trigger.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.faulted {
		return fmt.Errorf("camera hardware faulted")
	}
	c.mode = mode
	c.ttype = ttype
	c.frameN = 0
	return nil
}

// StartCapture launches the acquisition goroutine for software modes.
// Hardware-gated configurations produce only on InjectEdge.
func (c *SimCamera) StartCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.faulted {
		return fmt.Errorf("camera hardware faulted")
	}
	if c.capturing {
		return nil
	}
	if c.ttype.Hardware() || c.mode == trigger.ModeBulb {
		return nil
	}

	c.capturing = true
	c.stopChan = make(chan struct{})
	c.wg.Add(1)
	go c.captureLoop(c.mode, c.stopChan)
	return nil
}

func (c *SimCamera) StopCapture() {
	c.mu.Lock()
	if !c.capturing {
		c.mu.Unlock()
		return
	}
	c.capturing = false
	stop := c.stopChan
	c.mu.Unlock()

	close(stop)
	c.wg.Wait()
}

func (c *SimCamera) captureLoop(mode trigger.Mode, stop chan struct{}) {
	defer c.wg.Done()

	c.mu.Lock()
	period := c.framePeriod
	c.mu.Unlock()

	if mode == trigger.ModeOnce {
		select {
		case <-time.After(period):
			c.emitFrame()
		case <-stop:
		}
		c.mu.Lock()
		c.capturing = false
		c.mu.Unlock()
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.emitFrame()
		}
	}
}

// InjectEdge simulates the external trigger signal arriving at the
// hardware input: one exposure completes and one frame is produced.
func (c *SimCamera) InjectEdge() {
	c.mu.Lock()
	faulted := c.faulted
	c.mu.Unlock()
	if faulted {
		return
	}
	c.emitFrame()
}

// InjectFault simulates an unrecoverable hardware error.
func (c *SimCamera) InjectFault(reason string) {
	c.mu.Lock()
	c.faulted = true
	handler := c.onFault
	c.mu.Unlock()

	c.StopCapture()
	if handler != nil {
		handler(reason)
	}
}

func (c *SimCamera) emitFrame() {
	c.mu.Lock()
	handler := c.onFrame
	w, h := c.width, c.height
	c.frameN++
	n := c.frameN
	exposure := asFloat(c.props["exposure_ms"])
	c.mu.Unlock()

	if handler == nil {
		return
	}

	data := make([]byte, w*h)
	for i := range data {
		data[i] = byte((i + int(n)) % 256)
	}

	handler(&stream.Frame{
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Format:    "mono8",
		Meta:      map[string]any{"exposure_ms": exposure},
		Data:      data,
	})
}

func (c *SimCamera) Recover() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faulted = false
	return nil
}

func (c *SimCamera) Shutdown() error {
	c.StopCapture()
	return nil
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return 0
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}
