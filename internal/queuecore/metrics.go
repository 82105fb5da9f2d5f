package queuecore

import (
	"github.com/ternarybob/queuecore/internal/kv"
)

// metricsBucketMS is the width of one counter bucket: a fixed-width ring
// of per-minute counters.
const metricsBucketMS = 60_000

// RecordMetric implements the metrics collector. kind is "completed" or
// "failed" (the two terminal outcomes finish-active-job reports on).
// maxSize <= 0 skips metrics entirely.
func RecordMetric(tx *kv.Tx, keys Keys, kind string, timestampMS int64, maxSize int64) error {
	if maxSize <= 0 {
		return nil
	}

	hashKey := keys.MetricsHash(kind)
	dataKey := keys.MetricsData(kind)

	fields, err := tx.HGetAll(hashKey)
	if err != nil {
		return err
	}

	bucket := timestampMS / metricsBucketMS
	prevTS := parseInt64(fields["prevTS"])
	havePrev := fields["prevTS"] != ""

	if !havePrev {
		if err := tx.LPush(dataKey, "1"); err != nil {
			return err
		}
	} else if bucket == prevTS {
		if err := incrementHead(tx, dataKey); err != nil {
			return err
		}
	} else {
		skipped := bucket - prevTS
		if skipped < 1 {
			skipped = 1
		}
		// One fresh bucket for this call, plus a zero for every minute that
		// elapsed with no call in between.
		for i := int64(1); i < skipped; i++ {
			if err := tx.LPush(dataKey, "0"); err != nil {
				return err
			}
		}
		if err := tx.LPush(dataKey, "1"); err != nil {
			return err
		}
	}

	if err := trimMetricsData(tx, dataKey, maxSize); err != nil {
		return err
	}

	count := parseInt64(fields["count"]) + 1
	return tx.HSet(hashKey, map[string]string{
		"count":     formatInt64(count),
		"prevTS":    formatInt64(bucket),
		"prevCount": formatInt64(count),
	})
}

func incrementHead(tx *kv.Tx, dataKey string) error {
	values, err := tx.LMembers(dataKey)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return tx.LPush(dataKey, "1")
	}
	head := parseInt64(values[0]) + 1
	if _, _, err := tx.LPop(dataKey); err != nil {
		return err
	}
	return tx.LPush(dataKey, formatInt64(head))
}

func trimMetricsData(tx *kv.Tx, dataKey string, maxSize int64) error {
	for {
		n, err := tx.LLen(dataKey)
		if err != nil {
			return err
		}
		if int64(n) <= maxSize {
			return nil
		}
		if _, _, err := tx.RPop(dataKey); err != nil {
			return err
		}
	}
}
