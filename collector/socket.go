package collector

import (
	"strings"

	"github.com/ftahirops/perfdiag/util"
)

// socketQueues summarizes the queues of /proc/net/tcp entries.
type socketQueues struct {
	Sockets   int
	TxPending int    // sockets with unsent data
	TxBytes   uint64 // bytes waiting in send queues
	RxBytes   uint64
}

// parseSocketQueues reads the tx_queue:rx_queue column of /proc/net/tcp or
// tcp6 lines. The header line is skipped.
func parseSocketQueues(lines []string) socketQueues {
	var q socketQueues
	for i, line := range lines {
		if i == 0 && strings.Contains(line, "local_address") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		tx, rx, ok := strings.Cut(fields[4], ":")
		if !ok {
			continue
		}
		q.Sockets++
		txb := util.ParseHex64(tx)
		if txb > 0 {
			q.TxPending++
		}
		q.TxBytes += txb
		q.RxBytes += util.ParseHex64(rx)
	}
	return q
}
