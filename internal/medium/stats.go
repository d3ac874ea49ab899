package medium

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

const (
	opIdentify int = iota
	opReadPages
	opReadOOB
	opReadBlock
	opWriteBlock
	opEraseBlock
	opProgramSpare
	opCount
)

var opNames = []string{"identify", "read-pages", "read-oob", "read-block", "write-block", "erase-block", "program-spare"}

// Op tracks the count and cumulative latency of one raw operation.
type Op struct {
	count atomic.Uint32
	nanos atomic.Uint64
}

// Record adds one operation that started at start.
func (op *Op) Record(start time.Time) {
	op.count.Add(1)
	op.nanos.Add(uint64(time.Since(start).Nanoseconds()))
}

// Count returns the number of recorded operations.
func (op *Op) Count() uint32 {
	return op.count.Load()
}

// MicrosPerOp returns the mean latency in microseconds.
func (op *Op) MicrosPerOp() float64 {
	count := op.count.Load()
	if count == 0 {
		return 0
	}
	return float64(op.nanos.Load()) / float64(count) / 1e3
}

// Statistics tracks raw medium access.
type Statistics struct {
	ops          [opCount]Op
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	erases       atomic.Uint64
	freshWrites  atomic.Uint64
	failedWrites atomic.Uint64
}

func (s *Statistics) record(op int, start time.Time) {
	s.ops[op].Record(start)
}

func (s *Statistics) addRead(n uint64) {
	s.bytesRead.Add(n)
}

func (s *Statistics) addWrite(n uint64) {
	s.bytesWritten.Add(n)
}

// BytesRead returns the number of raw bytes transferred from the card.
func (s *Statistics) BytesRead() uint64 { return s.bytesRead.Load() }

// BytesWritten returns the number of raw bytes programmed.
func (s *Statistics) BytesWritten() uint64 { return s.bytesWritten.Load() }

// Erases returns the number of block erases.
func (s *Statistics) Erases() uint64 { return s.erases.Load() }

// FreshWrites returns the number of programs into blocks that held no logical block.
func (s *Statistics) FreshWrites() uint64 { return s.freshWrites.Load() }

// FailedWrites returns the number of programs the card rejected.
func (s *Statistics) FailedWrites() uint64 { return s.failedWrites.Load() }

// OpCount returns the count for a named operation, or 0 if the name is unknown.
func (s *Statistics) OpCount(name string) uint32 {
	for i, n := range opNames {
		if n == name {
			return s.ops[i].Count()
		}
	}
	return 0
}

// WriteTable renders per-operation counts and latencies.
func (s *Statistics) WriteTable(w io.Writer) {
	tbl := table.New("op", "count", "latency")
	tbl.WithWriter(w)
	for i, name := range opNames {
		op := &s.ops[i]
		tbl.AddRow(name, op.Count(), fmt.Sprintf("%0.1f us/op", op.MicrosPerOp()))
	}
	tbl.AddRow("bytes read", s.BytesRead(), "")
	tbl.AddRow("bytes written", s.BytesWritten(), "")
	tbl.AddRow("erases", s.Erases(), "")
	tbl.AddRow("failed programs", s.FailedWrites(), "")
	tbl.Print()
}

// FormatTable returns the statistics table as a string.
func (s *Statistics) FormatTable() string {
	buf := new(bytes.Buffer)
	s.WriteTable(buf)
	return buf.String()
}
