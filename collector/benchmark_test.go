package collector

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ftahirops/perfdiag/model"
)

func smallBench(dir string) BenchConfig {
	return BenchConfig{Dir: dir, SizeBytes: 1 << 20, PassBytes: 256 << 10, BlockSizes: []int64{4 << 10, 64 << 10}}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch left behind: %v", entries)
	}
}

func TestDiskBenchmarkRunsAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	res, err := (&DiskBenchmark{}).Collect(context.Background(), Env{Bench: smallBench(dir)})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	det := res.Details.(model.BenchmarkDetails)
	if len(det.Results) != 4 {
		t.Fatalf("results = %d, want write+read for two block sizes", len(det.Results))
	}
	for _, r := range det.Results {
		if r.Bytes != 256<<10 {
			t.Errorf("%s %s moved %d bytes, want %d", r.Op, BlockLabel(r.BlockSize), r.Bytes, 256<<10)
		}
	}
	if _, ok := res.Snapshot.Get(KeyBenchWriteMBs, "64K"); !ok {
		t.Error("missing 64K write throughput")
	}
	assertEmptyDir(t, dir)
}

// faultyFile fails every write.
type faultyFile struct{ closed bool }

func (f *faultyFile) ReadAt(p []byte, _ int64) (int, error)  { return len(p), nil }
func (f *faultyFile) WriteAt(p []byte, _ int64) (int, error) { return 0, errors.New("injected I/O error") }
func (f *faultyFile) Sync() error                            { return nil }
func (f *faultyFile) Close() error                           { f.closed = true; return nil }

func TestDiskBenchmarkCleansUpOnFault(t *testing.T) {
	dir := t.TempDir()
	ff := &faultyFile{}
	b := &DiskBenchmark{
		open: func(path string) (scratchFile, bool, error) {
			if err := os.WriteFile(path, nil, 0o600); err != nil {
				return nil, false, err
			}
			return ff, false, nil
		},
		allocate: func(scratchFile, int64) error { return nil },
	}
	res, err := b.Collect(context.Background(), Env{Bench: smallBench(dir)})
	var ce *model.CollectionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CollectionError", err)
	}
	if res.Err == "" {
		t.Error("result should carry the failure")
	}
	if !ff.closed {
		t.Error("scratch file not closed")
	}
	assertEmptyDir(t, dir)
}

func TestDiskBenchmarkCleansUpOnPanic(t *testing.T) {
	dir := t.TempDir()
	b := &DiskBenchmark{
		open:     func(string) (scratchFile, bool, error) { return &faultyFile{}, false, nil },
		allocate: func(scratchFile, int64) error { panic("allocator crashed") },
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_, _ = b.Collect(context.Background(), Env{Bench: smallBench(dir)})
	}()
	assertEmptyDir(t, dir)
}

func TestDiskBenchmarkCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&DiskBenchmark{}).Collect(ctx, Env{Bench: smallBench(dir)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	assertEmptyDir(t, dir)
}

func TestDiskBenchmarkInsufficientSpace(t *testing.T) {
	dir := t.TempDir()
	cfg := smallBench(dir)
	cfg.SizeBytes = 1 << 62
	_, err := (&DiskBenchmark{}).Collect(context.Background(), Env{Bench: cfg})
	if err == nil {
		t.Fatal("expected free space error")
	}
	assertEmptyDir(t, dir)
}

func TestWithScratchFileLogsCleanupFailure(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	failClose := &closeErrFile{}
	err := withScratchFile(dir, 4096,
		func(string) (scratchFile, bool, error) { return failClose, false, nil },
		func(scratchFile, int64) error { return nil },
		zap.New(core),
		func(string, scratchFile, bool) error { return nil })
	if err != nil {
		t.Fatalf("cleanup failures must not be returned: %v", err)
	}
	if logs.FilterMessage("scratch cleanup failed").Len() != 1 {
		t.Errorf("want one cleanup warning, got %v", logs.All())
	}
	assertEmptyDir(t, dir)
}

type closeErrFile struct{ faultyFile }

func (f *closeErrFile) Close() error { return errors.New("close failed") }

func TestBlockLabel(t *testing.T) {
	for size, want := range map[int64]string{4096: "4K", 8192: "8K", 65536: "64K", 262144: "256K", 1 << 20: "1M", 512: "512"} {
		if got := BlockLabel(size); got != want {
			t.Errorf("BlockLabel(%d) = %q, want %q", size, got, want)
		}
	}
}
