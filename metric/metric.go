// Package metric exposes per node type counters through expvar.
//
// Counters are updated with atomic operations only, so measure and drop
// functions can be called from the processing callback.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/signal"
)

const componentsLabel = "auproc.nodes"

const (
	// BlockCounter measures number of processed blocks.
	BlockCounter = "Blocks"
	// FrameCounter measures number of processed frames.
	FrameCounter = "Frames"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of processed signal.
	DurationCounter = "Duration"
	// ComponentCounter counts number of metered nodes.
	ComponentCounter = "Components"
	// DropCounter counts dropped messages and events.
	DropCounter = "Dropped"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		BlockCounter,
		FrameCounter,
		LatencyCounter,
		DurationCounter,
		ComponentCounter,
		DropCounter,
	}
)

// Get metrics values for provided node type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured node types.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when a block is processed.
type MeasureFunc func(frames int)

// DropFunc counts dropped messages or events.
type DropFunc func(n int64)

// Meter creates new measure closure to capture node counters.
func Meter(component interface{}, sampleRate int) MeasureFunc {
	metric := components.get(getType(component))
	metric.components.Add(1)
	var (
		calledAt      time.Time
		frames        int
		frameDuration time.Duration
	)
	return func(n int) {
		now := time.Now()
		if !calledAt.IsZero() {
			metric.latency.set(now.Sub(calledAt))
		}
		calledAt = now
		metric.blocks.Add(1)
		metric.frames.Add(int64(n))
		// recalculate block duration only when block size has changed
		if frames != n {
			frames = n
			frameDuration = durationOf(sampleRate, n)
		}
		metric.duration.add(frameDuration)
	}
}

// Dropper returns closure that counts dropped messages and events of the
// node type.
func Dropper(component interface{}) DropFunc {
	metric := components.get(getType(component))
	return func(n int64) {
		metric.dropped.Add(n)
	}
}

func durationOf(sampleRate, frames int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return signal.Frequency(sampleRate).Duration(frames)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		return metric
	}
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	blocks     *expvar.Int
	frames     *expvar.Int
	dropped    *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		blocks:     expvar.NewInt(key(componentType, BlockCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		dropped:    expvar.NewInt(key(componentType, DropCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
