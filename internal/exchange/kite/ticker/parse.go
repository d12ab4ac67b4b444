package ticker

import (
	"encoding/binary"
	"time"

	"slguard/internal/models"
)

const (
	segmentCDS = 3
	segmentBCD = 6
)

// parseTicks decodes a binary frame: a big-endian packet count followed by
// length-prefixed packets. Every packet mode starts with the instrument token
// and the last traded price in the segment's minor unit.
func parseTicks(data []byte, now time.Time) []models.Tick {
	if len(data) < 2 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(data[0:2]))
	off := 2
	ticks := make([]models.Tick, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(data) {
			break
		}
		size := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
		if off+size > len(data) {
			break
		}
		pkt := data[off : off+size]
		off += size
		if len(pkt) < 8 {
			continue
		}
		token := binary.BigEndian.Uint32(pkt[0:4])
		raw := int32(binary.BigEndian.Uint32(pkt[4:8]))
		ticks = append(ticks, models.Tick{
			Token:     token,
			LastPrice: float64(raw) / priceDivisor(token),
			Timestamp: now,
		})
	}
	return ticks
}

func priceDivisor(token uint32) float64 {
	switch token & 0xff {
	case segmentCDS:
		return 10000000
	case segmentBCD:
		return 10000
	default:
		return 100
	}
}
