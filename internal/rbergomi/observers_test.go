package rbergomi

import (
	"bytes"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

func TestChannelObserver(t *testing.T) {
	t.Parallel()
	ch := make(chan float64, 1)
	o := NewChannelObserver(ch)
	o.Update(25, 100)
	o.Update(50, 100) // dropped: the buffer is full

	if got := <-ch; got != 0.25 {
		t.Errorf("Expected 0.25, got %v", got)
	}
	select {
	case v := <-ch:
		t.Errorf("Expected the second update to be dropped, got %v", v)
	default:
	}

	NewChannelObserver(nil).Update(1, 2)
}

func TestLoggingObserverThrottles(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	o := NewLoggingObserver(zerolog.New(&buf).Level(zerolog.DebugLevel), 0.25)
	for done := int64(0); done <= 100; done += 5 {
		o.Update(done, 100)
	}
	lines := strings.Count(buf.String(), "monte-carlo progress")
	if lines < 4 || lines > 5 {
		t.Errorf("Expected 4 or 5 throttled log lines, got %d:\n%s", lines, buf.String())
	}
	if !strings.Contains(buf.String(), `"percent":"100.0%"`) {
		t.Errorf("Expected completion to be logged, got:\n%s", buf.String())
	}
}

func TestMetricsObserver(t *testing.T) {
	NewMetricsObserver().Update(3, 4)
	var m dto.Metric
	if err := runProgress.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetGauge().GetValue(); got != 0.75 {
		t.Errorf("Expected progress gauge 0.75, got %v", got)
	}
}

func TestObserversFanOut(t *testing.T) {
	t.Parallel()
	a, b := &progressSpy{}, &progressSpy{}
	Observers{a, b, NoOpObserver{}}.Update(7, 10)
	if a.done != 7 || b.done != 7 {
		t.Errorf("Expected both observers to see 7, got %d and %d", a.done, b.done)
	}
}
