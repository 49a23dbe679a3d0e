package symphony

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Master contract rows are pipe-separated:
// segment|token|name|series|optionType|strike|expiry|lotSize|tickSize|underlying
const masterContractFields = 10

const expiryLayout = "2006-01-02"

// parseMasterContract decodes the instrument catalog. Malformed rows
// are skipped; an empty catalog is a valid result and callers decide
// whether to retry.
func parseMasterContract(r io.Reader) ([]model.Instrument, error) {
	reader := csv.NewReader(r)
	reader.Comma = '|'
	reader.FieldsPerRecord = -1

	var out []model.Instrument
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(row) < masterContractFields {
			continue
		}

		strike, _ := strconv.ParseFloat(row[5], 64)
		lotSize, _ := strconv.Atoi(row[7])
		tickSize, _ := strconv.ParseFloat(row[8], 64)
		expiry, _ := time.ParseInLocation(expiryLayout, row[6], time.Local)

		out = append(out, model.Instrument{
			Segment:        row[0],
			Token:          row[1],
			Name:           row[2],
			Series:         row[3],
			OptionType:     enum.OptionType(row[4]),
			StrikePrice:    strike,
			Expiry:         expiry,
			LotSize:        lotSize,
			TickSize:       tickSize,
			UnderlyingName: row[9],
		})
	}
	return out, nil
}
