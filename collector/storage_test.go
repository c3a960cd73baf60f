package collector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftahirops/perfdiag/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseMDStat(t *testing.T) {
	lines := []string{
		"Personalities : [raid1] [raid6] [raid5] [raid4]",
		"md1 : active raid5 sdd1[2] sdc1[1] sdb1[0]",
		"      2093056 blocks super 1.2 level 5, 512k chunk, algorithm 2 [3/3] [UUU]",
		"",
		"md0 : active raid1 sdb2[1](F) sda2[0]",
		"      1046528 blocks super 1.2 [2/1] [U_]",
		"      bitmap: 1/1 pages [4KB], 65536KB chunk",
		"",
		"unused devices: <none>",
	}
	got := parseMDStat(lines)
	if len(got) != 2 {
		t.Fatalf("arrays = %d, want 2", len(got))
	}
	if got[0].Name != "md1" || got[0].Level != "raid5" || got[0].Degraded {
		t.Errorf("md1 = %+v", got[0])
	}
	if got[1].Name != "md0" || got[1].Status != "[U_]" || !got[1].Degraded {
		t.Errorf("md0 = %+v", got[1])
	}
}

func TestDetectScheme(t *testing.T) {
	mbr := make([]byte, 1024)
	mbr[510], mbr[511] = 0x55, 0xAA
	gpt := make([]byte, 1024)
	copy(gpt, mbr)
	copy(gpt[512:], "EFI PART")

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"gpt with protective mbr", gpt, "GPT"},
		{"mbr", mbr, "MBR"},
		{"blank", make([]byte, 1024), "RAW"},
		{"short read", make([]byte, 100), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectScheme(bytes.NewReader(tt.data)); got != tt.want {
				t.Errorf("detectScheme = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadPartitionsAlignment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sda", "sda1", "start"), "2048\n")  // 1 MiB
	writeFile(t, filepath.Join(root, "sda", "sda2", "start"), "63\n")    // legacy CHS offset
	writeFile(t, filepath.Join(root, "sda", "sda3", "start"), "40\n")    // 20 KiB: 4K but not 1M
	writeFile(t, filepath.Join(root, "sda", "queue", "rotational"), "0") // not a partition
	writeFile(t, filepath.Join(root, "loop0", "loop0p1", "start"), "1")

	open := func(string) (io.ReaderAt, io.Closer, error) { return nil, nil, errors.New("no device") }
	parts, err := readPartitions(root, open)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 3 {
		t.Fatalf("partitions = %+v, want 3", parts)
	}
	want := map[string][2]bool{"sda1": {true, true}, "sda2": {false, false}, "sda3": {true, false}}
	for _, p := range parts {
		w := want[p.Name]
		if p.Aligned4K != w[0] || p.Aligned1M != w[1] {
			t.Errorf("%s aligned4K=%v aligned1M=%v, want %v", p.Name, p.Aligned4K, p.Aligned1M, w)
		}
		if p.Scheme != "unknown" {
			t.Errorf("%s scheme = %q, want unknown when the device cannot be read", p.Name, p.Scheme)
		}
	}
}

func TestReadISCSISessions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "session1", "state"), "LOGGED_IN\n")
	writeFile(t, filepath.Join(root, "session1", "targetname"), "iqn.2001-05.com.example:vol1\n")
	writeFile(t, filepath.Join(root, "session2", "state"), "FAILED\n")

	got := readISCSISessions(root)
	if len(got) != 2 {
		t.Fatalf("sessions = %+v", got)
	}
	if got[0].State != "LOGGED_IN" || got[0].Target != "iqn.2001-05.com.example:vol1" {
		t.Errorf("session1 = %+v", got[0])
	}
	if got[1].State != "FAILED" {
		t.Errorf("session2 = %+v", got[1])
	}
}

func TestStorageCollectorSMARTKeys(t *testing.T) {
	s := &StorageCollector{
		SMART: func(context.Context) []model.SMARTDisk {
			return []model.SMARTDisk{
				{Name: "sda", HealthOK: false, Temperature: 65, WearLevelPct: -1},
				{Name: "nvme0n1", HealthOK: true, Temperature: 40, WearLevelPct: 5},
				{Name: "sdb", ErrorString: "permission denied", WearLevelPct: -1},
			}
		},
		openDevice: func(string) (io.ReaderAt, io.Closer, error) { return nil, nil, errors.New("no device") },
	}
	res, _ := s.Collect(context.Background(), Env{})

	if v, ok := res.Snapshot.Get(KeySMARTFailed, "sda"); !ok || v != 1 {
		t.Errorf("sda failed = %v (%v), want 1", v, ok)
	}
	if v, _ := res.Snapshot.Get(KeySSDLife, "nvme0n1"); v != 5 {
		t.Errorf("nvme life = %v, want 5", v)
	}
	if _, ok := res.Snapshot.Get(KeySSDLife, "sda"); ok {
		t.Error("unknown wear level must not be recorded")
	}
	if v, _ := res.Snapshot.Get(KeyDiskTemp, "sda"); v != 65 {
		t.Errorf("sda temperature = %v, want 65", v)
	}
	if _, ok := res.Snapshot.Get(KeySMARTFailed, "sdb"); ok {
		t.Error("disks smartctl could not query must not be judged")
	}
}
