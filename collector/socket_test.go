package collector

import "testing"

func TestParseSocketQueues(t *testing.T) {
	lines := []string{
		"  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode",
		"   0: 0100007F:0CEA 00000000:0000 0A 00000000:00000000 00:00000000 00000000   999        0 21401 1 0000000000000000 100 0 0 10 0",
		"   1: 0F02000A:0016 0202000A:D6C2 01 00000200:00000010 01:00000020 00000000     0        0 45193 4 0000000000000000 20 4 1 10 -1",
		"   2: 0F02000A:0016 0202000A:D6C3 01 00000001:00000000 01:00000020 00000000     0        0 45194 4 0000000000000000 20 4 1 10 -1",
		"garbage",
	}
	q := parseSocketQueues(lines)
	if q.Sockets != 3 {
		t.Errorf("Sockets = %d, want 3", q.Sockets)
	}
	if q.TxPending != 2 {
		t.Errorf("TxPending = %d, want 2", q.TxPending)
	}
	if q.TxBytes != 0x201 {
		t.Errorf("TxBytes = %d, want %d", q.TxBytes, 0x201)
	}
	if q.RxBytes != 0x10 {
		t.Errorf("RxBytes = %d, want %d", q.RxBytes, 0x10)
	}
}
