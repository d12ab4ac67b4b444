package kite

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"slguard/internal/models"
)

// ListInstruments downloads the instrument dump for one exchange. Kite serves
// it as CSV rather than JSON.
func (c *Client) ListInstruments(ctx context.Context, exchange string) ([]models.Instrument, error) {
	data, err := c.doRaw(ctx, http.MethodGet, "/instruments/"+url.PathEscape(exchange), nil)
	if err != nil {
		return nil, err
	}
	return parseInstruments(bytes.NewReader(data))
}

func parseInstruments(r io.Reader) ([]models.Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read instruments header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"instrument_token", "tradingsymbol", "exchange"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("instruments csv: missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var out []models.Instrument
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instruments row: %w", err)
		}
		token, err := strconv.ParseUint(field(rec, "instrument_token"), 10, 32)
		if err != nil {
			continue
		}
		tick, _ := strconv.ParseFloat(field(rec, "tick_size"), 64)
		lot, _ := strconv.Atoi(field(rec, "lot_size"))
		out = append(out, models.Instrument{
			Token:    uint32(token),
			Exchange: field(rec, "exchange"),
			Symbol:   field(rec, "tradingsymbol"),
			Name:     field(rec, "name"),
			TickSize: tick,
			LotSize:  lot,
		})
	}
	return out, nil
}
