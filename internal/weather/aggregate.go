package weather

import (
	"math"
	"time"
)

// minSpan is the minimum wall-time coverage the store must hold before
// any watering window can be aggregated.
const minSpan = 23 * time.Hour

// AggregateDays rolls the raw samples up into at most 8 per-local-day
// buckets: a partial "today" plus up to 7 past days, newest-first.
//
// obs must be in insertion order (oldest first), as returned by the
// store's snapshot view. The span between the newest and oldest sample
// must cover at least 23 hours. Yesterday's bucket is mandatory; older
// days stop at the first gap so the window stays contiguous.
func AggregateDays(obs []Observation, zone *time.Location, now time.Time) ([]DayBucket, error) {
	if len(obs) == 0 {
		return nil, ErrInsufficientData
	}

	newest := obs[len(obs)-1].Timestamp
	oldest := obs[0].Timestamp
	if time.Duration(newest-oldest)*time.Second < minSpan {
		return nil, ErrInsufficientData
	}

	midnight := LocalMidnight(now, zone)

	var days []DayBucket

	// Today is a partial bucket; emit it only when usable.
	if today, ok := buildBucket(obs, midnight, now.Add(time.Second)); ok {
		days = append(days, today)
	}

	for i := 1; i <= 7; i++ {
		start := midnight.AddDate(0, 0, -i)
		end := midnight.AddDate(0, 0, -(i - 1))
		bucket, ok := buildBucket(obs, start, end)
		if !ok {
			if i == 1 {
				// Zimmerman-style consumers need yesterday.
				return nil, ErrInsufficientData
			}
			break
		}
		days = append(days, bucket)
	}

	return days, nil
}

// buildBucket aggregates the samples with timestamps in [start, end).
// It reports false when the bucket fails the completeness test: at
// least one temperature and one humidity sample, with finite extremes.
func buildBucket(obs []Observation, start, end time.Time) (DayBucket, bool) {
	var (
		sumTemp, sumHum, sumSolar, sumWind, precip float64
		tempCount, humCount, solarCount, windCount int
		sampleCount                                int
		firstTS, lastTS                            int64
	)
	minTemp, maxTemp := math.Inf(1), math.Inf(-1)
	minHum, maxHum := math.Inf(1), math.Inf(-1)

	startEpoch := start.Unix()
	endEpoch := end.Unix()

	for _, o := range obs {
		if o.Timestamp < startEpoch || o.Timestamp >= endEpoch {
			continue
		}
		sampleCount++
		if firstTS == 0 || o.Timestamp < firstTS {
			firstTS = o.Timestamp
		}
		if o.Timestamp > lastTS {
			lastTS = o.Timestamp
		}

		if o.TempF != nil {
			sumTemp += *o.TempF
			tempCount++
			minTemp = math.Min(minTemp, *o.TempF)
			maxTemp = math.Max(maxTemp, *o.TempF)
		}
		if o.HumidityPct != nil {
			sumHum += *o.HumidityPct
			humCount++
			minHum = math.Min(minHum, *o.HumidityPct)
			maxHum = math.Max(maxHum, *o.HumidityPct)
		}
		if o.SolarKWhM2Day != nil {
			sumSolar += *o.SolarKWhM2Day
			solarCount++
		}
		if o.WindMPH != nil {
			sumWind += *o.WindMPH
			windCount++
		}
		if o.IntervalRainIn != nil {
			precip += *o.IntervalRainIn
		}
	}

	if tempCount == 0 || humCount == 0 {
		return DayBucket{}, false
	}
	if math.IsInf(minTemp, 0) || math.IsInf(maxTemp, 0) || math.IsInf(minHum, 0) || math.IsInf(maxHum, 0) {
		return DayBucket{}, false
	}

	b := DayBucket{
		LocalMidnight: startEpoch,
		MeanTempF:     sumTemp / float64(tempCount),
		MinTempF:      minTemp,
		MaxTempF:      maxTemp,
		MeanHumidity:  sumHum / float64(humCount),
		MinHumidity:   minHum,
		MaxHumidity:   maxHum,
		PrecipIn:      precip,
		SampleCount:   sampleCount,
		Complete:      time.Duration(lastTS-firstTS)*time.Second >= minSpan,
	}
	if solarCount > 0 {
		b.MeanSolar = Float64(sumSolar / float64(solarCount))
	}
	if windCount > 0 {
		b.MeanWindMPH = Float64(sumWind / float64(windCount))
	}
	return b, true
}
