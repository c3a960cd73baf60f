package collector

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/util"
)

const (
	sectorSize = 512
	align4K    = 4 << 10
	align1M    = 1 << 20
)

// StorageCollector inventories partitions, software RAID, SAN sessions and
// SMART health. It takes no samples.
type StorageCollector struct {
	SMART func(ctx context.Context) []model.SMARTDisk
	// openDevice is swapped in tests.
	openDevice func(name string) (io.ReaderAt, io.Closer, error)
}

func (s *StorageCollector) Domain() model.Domain { return model.DomainStorage }

func (s *StorageCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainStorage)
	defer finish(&res)
	log := env.logger()

	open := s.openDevice
	if open == nil {
		open = openBlockDevice
	}

	var det model.StorageDetails
	parts, err := readPartitions(util.SysPath("block"), open)
	if err != nil {
		log.Warn("partition inventory unavailable", zap.String("domain", string(res.Domain)), zap.Error(err))
		res.AddGap("Partitions")
	}
	det.Partitions = parts
	for _, p := range parts {
		if !p.Aligned4K {
			res.Snapshot.Set(KeyPartition4K, p.Name, float64(p.OffsetBytes%align4K))
			continue
		}
		// 1M is only reported once 4K holds so one partition yields one finding.
		res.Snapshot.Set(KeyPartition4K, p.Name, 0)
		res.Snapshot.Set(KeyPartition1M, p.Name, float64(p.OffsetBytes%align1M))
	}

	if lines, err := util.ReadFileLines(util.ProcPath("mdstat")); err == nil {
		det.Arrays = parseMDStat(lines)
		for _, a := range det.Arrays {
			res.Snapshot.Set(KeyRAIDDegraded, a.Name, boolValue(a.Degraded))
		}
	}

	det.Sessions = readISCSISessions(util.SysPath("class", "iscsi_session"))
	for _, sess := range det.Sessions {
		res.Snapshot.Set(KeyISCSIDown, sess.Name, boolValue(sess.State != "LOGGED_IN"))
	}

	smart := s.SMART
	if smart == nil {
		smart = ScanSMART
	}
	det.SMART = smart(ctx)
	if det.SMART == nil {
		res.AddGap("SMART")
	}
	for _, d := range det.SMART {
		if d.ErrorString != "" {
			continue
		}
		res.Snapshot.Set(KeySMARTFailed, d.Name, boolValue(!d.HealthOK))
		if d.WearLevelPct >= 0 {
			res.Snapshot.Set(KeySSDLife, d.Name, float64(d.WearLevelPct))
		}
		if d.Temperature > 0 {
			res.Snapshot.Set(KeyDiskTemp, d.Name, float64(d.Temperature))
		}
	}

	res.Details = det
	return res, ctx.Err()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func openBlockDevice(name string) (io.ReaderAt, io.Closer, error) {
	f, err := os.Open(filepath.Join("/dev", name))
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// readPartitions walks <root>/<disk>/<part>/start for every whole disk.
func readPartitions(root string, open func(string) (io.ReaderAt, io.Closer, error)) ([]model.PartitionInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []model.PartitionInfo
	for _, e := range entries {
		diskName := e.Name()
		if !isWholeDisk(diskName) || strings.HasPrefix(diskName, "md") {
			continue
		}
		scheme := "unknown"
		if r, c, err := open(diskName); err == nil {
			scheme = detectScheme(r)
			c.Close()
		}

		subs, err := os.ReadDir(filepath.Join(root, diskName))
		if err != nil {
			continue
		}
		for _, sub := range subs {
			startPath := filepath.Join(root, diskName, sub.Name(), "start")
			s, err := util.ReadFileString(startPath)
			if err != nil {
				continue
			}
			offset := util.ParseUint64(s) * sectorSize
			out = append(out, model.PartitionInfo{
				Disk:        diskName,
				Name:        sub.Name(),
				Scheme:      scheme,
				OffsetBytes: offset,
				Aligned4K:   offset%align4K == 0,
				Aligned1M:   offset%align1M == 0,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var (
	gptSignature = []byte("EFI PART")
	mbrSignature = []byte{0x55, 0xAA}
)

// detectScheme reads the partition table signature from the first two
// sectors of a disk.
func detectScheme(r io.ReaderAt) string {
	buf := make([]byte, 2*sectorSize)
	n, _ := r.ReadAt(buf, 0)
	if n < sectorSize {
		return "unknown"
	}
	if n >= sectorSize+len(gptSignature) && bytes.Equal(buf[sectorSize:sectorSize+len(gptSignature)], gptSignature) {
		return "GPT"
	}
	if bytes.Equal(buf[510:512], mbrSignature) {
		return "MBR"
	}
	return "RAW"
}

var mdStatusRE = regexp.MustCompile(`\[[U_]+\]`)

// parseMDStat parses /proc/mdstat. An array is degraded when its member
// status map contains a missing member.
func parseMDStat(lines []string) []model.RAIDArray {
	var out []model.RAIDArray
	var cur *model.RAIDArray
	for _, line := range lines {
		if strings.HasPrefix(line, "md") && strings.Contains(line, " : ") {
			name, rest, _ := strings.Cut(line, " : ")
			fields := strings.Fields(rest)
			arr := model.RAIDArray{Name: strings.TrimSpace(name)}
			for _, f := range fields {
				if strings.HasPrefix(f, "raid") || f == "linear" {
					arr.Level = f
					break
				}
			}
			out = append(out, arr)
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			continue
		}
		if m := mdStatusRE.FindString(line); m != "" && cur.Status == "" {
			cur.Status = m
			cur.Degraded = strings.Contains(m, "_")
		}
	}
	return out
}

// readISCSISessions reads <root>/session*/state and targetname.
func readISCSISessions(root string) []model.ISCSISession {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []model.ISCSISession
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "session") {
			continue
		}
		state, err := util.ReadFileString(filepath.Join(root, e.Name(), "state"))
		if err != nil {
			continue
		}
		target, _ := util.ReadFileString(filepath.Join(root, e.Name(), "targetname"))
		out = append(out, model.ISCSISession{Name: e.Name(), Target: target, State: state})
	}
	return out
}
