// Package idhash derives deterministic identifiers for persisted records.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// ComputeTradeID returns the hex SHA-256 of the run, the instrument-day and
// the trade's position in its blotter. String fields are length-prefixed so
// that no two keys share an encoding. Replaying a run reproduces the ids.
func ComputeTradeID(runID, tradingDate, instrument string, seq int, openTime int64) string {
	h := sha256.New()
	for _, s := range [...]string{runID, tradingDate, instrument} {
		writeUint(h, uint64(len(s)))
		h.Write([]byte(s))
	}
	writeUint(h, uint64(seq))
	writeUint(h, uint64(openTime))
	return hex.EncodeToString(h.Sum(nil))
}

func writeUint(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}
