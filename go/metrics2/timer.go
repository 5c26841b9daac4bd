package metrics2

import (
	"runtime"
	"strings"
	"time"
)

const (
	MEASUREMENT_TIMER = "timer"
	NAME_FUNC_TIMER   = "func_timer"
)

// Timer measures elapsed time. It reports a single observation, in seconds,
// when Stop() is called.
type Timer struct {
	begin  time.Time
	metric Float64SummaryMetric
}

// NewTimer creates and returns a new Timer using the default client. The
// name is added to the tags.
func NewTimer(name string, tags ...map[string]string) *Timer {
	t := map[string]string{"name": name}
	for _, m := range tags {
		for k, v := range m {
			t[k] = v
		}
	}
	return &Timer{
		begin:  time.Now(),
		metric: GetFloat64SummaryMetric(MEASUREMENT_TIMER, t),
	}
}

// Stop stops the timer, reports and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.begin)
	t.metric.Observe(d.Seconds())
	return d
}

// FuncTimer is specifically intended for measuring the duration of functions.
//
// The standard way to use FuncTimer is at the top of the func you
// want to measure:
//
//	func myfunc() {
//	   defer metrics2.FuncTimer().Stop()
//	   ...
//	}
func FuncTimer() *Timer {
	pc, _, _, _ := runtime.Caller(1)
	f := runtime.FuncForPC(pc)
	fn := "unknown"
	pkg := "unknown"
	if f != nil {
		split := strings.Split(f.Name(), ".")
		if len(split) >= 2 {
			fn = split[len(split)-1]
			pkg = strings.Join(split[:len(split)-1], ".")
		}
	}
	return NewTimer(NAME_FUNC_TIMER, map[string]string{"package": pkg, "func": fn})
}
