package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pulse-monitor/internal/analyzer"
	"pulse-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeProcessor 记录收到的读数；failOn / panicOn 按病人模拟失败
type fakeProcessor struct {
	mu       sync.Mutex
	readings []models.PulseReading
	failOn   map[string]error
	panicOn  map[string]bool
	jumpOn   map[string]bool
	// hook 在处理每条读数时调用，返回错误则该条失败
	hook func(ctx context.Context) error
}

func (p *fakeProcessor) ProcessReading(ctx context.Context, reading models.PulseReading) (analyzer.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.panicOn[reading.PatientID] {
		panic("nil map write")
	}
	if err := p.failOn[reading.PatientID]; err != nil {
		return analyzer.Outcome{}, err
	}
	if p.hook != nil {
		if err := p.hook(ctx); err != nil {
			return analyzer.Outcome{}, err
		}
	}
	p.readings = append(p.readings, reading)
	return analyzer.Outcome{Jump: p.jumpOn[reading.PatientID]}, nil
}

func insert(patientID, value string) models.ChangeEvent {
	return models.ChangeEvent{
		EventName: models.EventNameInsert,
		NewImage: map[string]string{
			models.AttrPatientID: patientID,
			models.AttrValue:     value,
			models.AttrTimestamp: "1718000000000",
		},
	}
}

func newObservedDispatcher(p ReadingProcessor) (*Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(p, zap.New(core)), logs
}

func TestHandleBatch_AllInserted(t *testing.T) {
	p := &fakeProcessor{jumpOn: map[string]bool{"2": true}}
	d, _ := newObservedDispatcher(p)

	result := d.HandleBatch(context.Background(), []models.ChangeEvent{insert("1", "80"), insert("2", "95")})

	assert.Equal(t, BatchResult{Processed: 2, Jumps: 1}, result)
	require.Len(t, p.readings, 2)
	assert.Equal(t, models.PulseReading{PatientID: "1", Value: 80, TimestampRaw: "1718000000000"}, p.readings[0])
}

func TestHandleBatch_NoNewImage(t *testing.T) {
	p := &fakeProcessor{}
	d, logs := newObservedDispatcher(p)

	result := d.HandleBatch(context.Background(), []models.ChangeEvent{{EventName: models.EventNameInsert}})

	assert.Equal(t, BatchResult{Skipped: 1}, result)
	assert.Empty(t, p.readings)

	warned := logs.FilterMessage("No new image found").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
}

func TestHandleBatch_NonInsertSkipped(t *testing.T) {
	p := &fakeProcessor{}
	d, logs := newObservedDispatcher(p)

	modify := insert("1", "80")
	modify.EventName = "MODIFY"

	result := d.HandleBatch(context.Background(), []models.ChangeEvent{modify, insert("2", "70")})

	assert.Equal(t, BatchResult{Processed: 1, Skipped: 1}, result)
	require.Len(t, p.readings, 1)
	assert.Equal(t, "2", p.readings[0].PatientID)
	assert.Equal(t, 1, logs.FilterMessage("Unexpected event").Len())
}

func TestHandleBatch_MalformedSkipped(t *testing.T) {
	p := &fakeProcessor{}
	d, logs := newObservedDispatcher(p)

	result := d.HandleBatch(context.Background(), []models.ChangeEvent{insert("1", "abc"), insert("2", "70")})

	assert.Equal(t, BatchResult{Processed: 1, Skipped: 1}, result)
	assert.Equal(t, 1, logs.FilterMessage("Skipping malformed record").Len())
}

func TestHandleBatch_FailureIsolatedPerRecord(t *testing.T) {
	p := &fakeProcessor{
		failOn:  map[string]error{"1": &models.ExternalStoreError{Store: "pulse_last_value", Op: "get", Err: errors.New("timeout")}},
		panicOn: map[string]bool{"2": true},
	}
	d, logs := newObservedDispatcher(p)

	result := d.HandleBatch(context.Background(), []models.ChangeEvent{
		insert("1", "80"),
		insert("2", "80"),
		insert("3", "80"),
	})

	assert.Equal(t, BatchResult{Processed: 1, Failed: 2}, result)
	require.Len(t, p.readings, 1)
	assert.Equal(t, "3", p.readings[0].PatientID)

	failures := logs.FilterMessage("Failed to process pulse reading").All()
	require.Len(t, failures, 2)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestHandleBatch_Empty(t *testing.T) {
	d, _ := newObservedDispatcher(&fakeProcessor{})
	assert.Equal(t, BatchResult{}, d.HandleBatch(context.Background(), nil))
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}
