package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ftahirops/perfdiag/model"
)

const (
	// DefaultPassBytes is how much data each block size writes, then reads.
	DefaultPassBytes = 100 << 20
	// DefaultScratchGB is the scratch file size when none is configured.
	DefaultScratchGB = 1
)

// ValidScratchSizesGB are the accepted scratch file sizes.
var ValidScratchSizesGB = []int{1, 5, 10, 50, 100}

// BenchConfig parameterizes one DiskBenchmark run.
type BenchConfig struct {
	Dir        string // parent of the scratch directory; empty means os.TempDir
	SizeBytes  int64
	BlockSizes []int64
	PassBytes  int64
}

func (c BenchConfig) withDefaults() BenchConfig {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.SizeBytes <= 0 {
		c.SizeBytes = DefaultScratchGB << 30
	}
	if c.PassBytes <= 0 {
		c.PassBytes = DefaultPassBytes
	}
	if len(c.BlockSizes) == 0 {
		c.BlockSizes = []int64{4 << 10, 64 << 10, 1 << 20}
	}
	return c
}

// scratchFile is what the benchmark needs from its test file.
type scratchFile interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// DiskBenchmark measures sequential throughput on a temporary file. The file
// and its directory are removed on every exit path, including panics.
type DiskBenchmark struct {
	// open and allocate are swapped in tests.
	open     func(path string) (f scratchFile, direct bool, err error)
	allocate func(f scratchFile, size int64) error
}

func (b *DiskBenchmark) Domain() model.Domain { return model.DomainDiskBenchmark }

// Exclusive keeps the active I/O test from overlapping passive sampling.
func (b *DiskBenchmark) Exclusive() bool { return true }

func (b *DiskBenchmark) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainDiskBenchmark)
	defer finish(&res)
	log := env.logger()
	cfg := env.Bench.withDefaults()

	open, alloc := b.open, b.allocate
	if open == nil {
		open = openScratch
	}
	if alloc == nil {
		alloc = allocateScratch
	}

	det := model.BenchmarkDetails{FileBytes: cfg.SizeBytes}
	err := withScratchFile(cfg.Dir, cfg.SizeBytes, open, alloc, log, func(dir string, f scratchFile, direct bool) error {
		det.Dir, det.Direct = dir, direct
		results, err := runPasses(ctx, f, cfg)
		det.Results = results
		return err
	})
	for _, r := range det.Results {
		label := BlockLabel(r.BlockSize)
		if r.Op == opWrite {
			res.Snapshot.Set(KeyBenchWriteMBs, label, r.MBPerSec)
			res.Snapshot.Set(KeyBenchWriteLat, label, r.AvgLatencyMs)
		} else {
			res.Snapshot.Set(KeyBenchReadMBs, label, r.MBPerSec)
			res.Snapshot.Set(KeyBenchReadLat, label, r.AvgLatencyMs)
		}
		res.Snapshot.Set(KeyBenchIOPS, r.Op+" "+label, r.IOPS)
	}
	res.Details = det
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Err = err.Error()
		log.Warn("disk benchmark failed", zap.String("domain", string(res.Domain)), zap.Error(err))
		return res, &model.CollectionError{Domain: res.Domain, Err: err}
	}
	return res, nil
}

// withScratchFile creates a private directory under parent holding one file
// of size bytes, runs fn, and removes both afterwards. Cleanup failures are
// logged and never returned.
func withScratchFile(parent string, size int64,
	open func(string) (scratchFile, bool, error),
	alloc func(scratchFile, int64) error,
	log *zap.Logger,
	fn func(dir string, f scratchFile, direct bool) error,
) error {
	if err := checkFreeSpace(parent, size); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(parent, "perfdiag-bench-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("scratch cleanup failed", zap.Error(&model.CleanupError{Path: dir, Err: err}))
		}
	}()

	path := filepath.Join(dir, "bench.dat")
	f, direct, err := open(path)
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn("scratch cleanup failed", zap.Error(&model.CleanupError{Path: path, Err: err}))
		}
	}()

	if err := alloc(f, size); err != nil {
		return fmt.Errorf("allocate %d bytes: %w", size, err)
	}
	return fn(dir, f, direct)
}

func checkFreeSpace(dir string, size int64) error {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", dir, err)
	}
	free := int64(st.Bavail) * int64(st.Bsize)
	if free < size {
		return fmt.Errorf("insufficient free space in %s: need %d bytes, have %d", dir, size, free)
	}
	return nil
}

// openScratch opens the file for direct I/O, falling back to buffered I/O on
// filesystems that reject O_DIRECT (tmpfs, some overlays).
func openScratch(path string) (scratchFile, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL|unix.O_DIRECT, 0o600)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, unix.EINVAL) {
		return nil, false, err
	}
	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

func allocateScratch(f scratchFile, size int64) error {
	osf, ok := f.(*os.File)
	if !ok {
		return nil
	}
	if err := unix.Fallocate(int(osf.Fd()), 0, 0, size); err != nil {
		// EOPNOTSUPP on filesystems without extents
		return osf.Truncate(size)
	}
	return nil
}

const (
	opWrite = "write"
	opRead  = "read"
)

func runPasses(ctx context.Context, f scratchFile, cfg BenchConfig) ([]model.BenchResult, error) {
	var largest int64
	for _, bs := range cfg.BlockSizes {
		if bs > largest {
			largest = bs
		}
	}
	buf, release, err := alignedBuffer(int(largest))
	if err != nil {
		return nil, err
	}
	defer release()
	for i := range buf {
		buf[i] = byte(i*31 + 7)
	}

	var out []model.BenchResult
	for _, bs := range cfg.BlockSizes {
		for _, op := range []string{opWrite, opRead} {
			r, err := runPass(ctx, f, op, bs, cfg.PassBytes, cfg.SizeBytes, buf[:bs])
			if err != nil {
				return out, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// alignedBuffer maps anonymous memory, which is page aligned as O_DIRECT
// requires.
func alignedBuffer(size int) ([]byte, func(), error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("map I/O buffer: %w", err)
	}
	return buf, func() { _ = unix.Munmap(buf) }, nil
}

// runPass issues passBytes of sequential I/O in block-sized operations,
// wrapping at the end of the file.
func runPass(ctx context.Context, f scratchFile, op string, block, passBytes, fileSize int64, buf []byte) (model.BenchResult, error) {
	res := model.BenchResult{BlockSize: block, Op: op}
	ops := passBytes / block
	if ops == 0 {
		ops = 1
	}
	span := fileSize / block
	if span == 0 {
		return res, fmt.Errorf("scratch file smaller than block size %d", block)
	}

	var busy time.Duration
	start := time.Now()
	for i := int64(0); i < ops; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		off := (i % span) * block
		t0 := time.Now()
		var n int
		var err error
		if op == opWrite {
			n, err = f.WriteAt(buf, off)
		} else {
			n, err = f.ReadAt(buf, off)
			if errors.Is(err, io.EOF) && int64(n) == block {
				err = nil
			}
		}
		busy += time.Since(t0)
		if err != nil {
			return res, fmt.Errorf("%s %d bytes at offset %d: %w", op, block, off, err)
		}
		res.Bytes += int64(n)
	}
	if op == opWrite {
		if err := f.Sync(); err != nil {
			return res, fmt.Errorf("sync: %w", err)
		}
	}
	res.Elapsed = time.Since(start)

	secs := res.Elapsed.Seconds()
	if secs > 0 {
		res.MBPerSec = float64(res.Bytes) / (1 << 20) / secs
		res.IOPS = float64(ops) / secs
	}
	res.AvgLatencyMs = float64(busy.Microseconds()) / 1000 / float64(ops)
	return res, nil
}

// BlockLabel renders a block size as 4K, 64K, 1M.
func BlockLabel(size int64) string {
	switch {
	case size >= 1<<20 && size%(1<<20) == 0:
		return strconv.FormatInt(size>>20, 10) + "M"
	case size >= 1<<10 && size%(1<<10) == 0:
		return strconv.FormatInt(size>>10, 10) + "K"
	}
	return strconv.FormatInt(size, 10)
}
