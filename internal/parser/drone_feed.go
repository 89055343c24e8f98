package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/droneguard/backend/internal/models"
)

// feedColumns is the column count of the live drone feed:
// time_stamp,time,id,name,lat,lon,alt,acc,fix,lnk,eng,sim
const feedColumns = 12

// DroneFeedParser handles the comma separated live drone feed.
type DroneFeedParser struct{}

func NewDroneFeedParser() *DroneFeedParser {
	return &DroneFeedParser{}
}

// Parse reads one record per non-empty line. Malformed lines are reported as
// ParseErrors and skipped; a header line starting with "time_stamp" is ignored.
func (p *DroneFeedParser) Parse(r io.Reader) ([]models.FeedRecord, []*models.ParseError, error) {
	records := make([]models.FeedRecord, 0)
	errors := make([]*models.ParseError, 0)

	ids := newIDPool(maxPooledIDs)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "time_stamp") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != feedColumns {
			errors = append(errors, &models.ParseError{Line: lineNum, Content: line, Reason: "expected 12 columns"})
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		rec, reason := feedRecord(parts, ids)
		if reason != "" {
			errors = append(errors, &models.ParseError{Line: lineNum, Content: line, Reason: reason})
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return records, errors, nil
}

func feedRecord(parts []string, ids *idPool) (models.FeedRecord, string) {
	rec := models.FeedRecord{TimeStamp: parts[0], ID: ids.intern(parts[2]), Name: ids.intern(parts[3])}
	if rec.ID == "" {
		return rec, "missing drone id"
	}

	t, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return rec, "invalid time"
	}
	rec.Time = t

	floats := []*float64{&rec.Lat, &rec.Lon, &rec.Alt, &rec.Acc}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(parts[4+i], 64)
		if err != nil {
			return rec, "invalid number in column " + strconv.Itoa(5+i)
		}
		*dst = v
	}
	if rec.Lat < -90 || rec.Lat > 90 || rec.Lon < -180 || rec.Lon > 180 {
		return rec, "coordinates out of range"
	}

	ints := []*int{&rec.Fix, &rec.Lnk, &rec.Eng, &rec.Sim}
	for i, dst := range ints {
		v, err := strconv.Atoi(parts[8+i])
		if err != nil {
			return rec, "invalid flag in column " + strconv.Itoa(9+i)
		}
		*dst = v
	}
	return rec, ""
}
