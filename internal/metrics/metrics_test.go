package metrics

import (
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register

	// Recording against every collector must not panic.
	RecordRun("completed")
	RecordExtraction("nvidia-newsroom", "static", 120*time.Millisecond)
	RecordAnalysis("failed")
	RecordInference("success", time.Second)
	SetPipelineActive(true)
	SetPipelineActive(false)
}

func TestRecordBeforeInitIsNoop(t *testing.T) {
	// Collectors are package-level; recording helpers guard against nil
	// so library users who skip Init never panic.
	RecordRun("completed")
	RecordAnalysis("complete")
}
