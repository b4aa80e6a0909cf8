package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// EventRiskPredicted is the event type the risk service publishes per saved record.
const EventRiskPredicted = "risk-predicted"

const (
	keyDistribution = "maternal_risk:distribution"
	keyByAge        = "maternal_risk:by_age"
	keyByGravida    = "maternal_risk:by_gravida"
	keyOwnerPrefix  = "maternal_risk:owner:"
	keySeenPrefix   = "maternal_risk:seen:"

	seenTTL = 7 * 24 * time.Hour
)

var errMissingLabel = errors.New("event has no hasil_prediksi")

// HashStore is the subset of the Redis API the counter uses; *redis.Client
// satisfies it.
type HashStore interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RiskCounter keeps running totals of saved predictions in Redis hashes.
type RiskCounter struct {
	store HashStore
}

func NewRiskCounter(store HashStore) *RiskCounter {
	return &RiskCounter{store: store}
}

// Observation is one saved prediction.
type Observation struct {
	RecordID  string
	CreatedBy string
	Label     string
	UmurIbu   interface{}
	Gravida   interface{}
}

// Record adds obs to the totals. A record id seen before is ignored so that
// redelivered events are not counted twice.
func (c *RiskCounter) Record(ctx context.Context, obs Observation) error {
	if obs.Label == "" {
		return errMissingLabel
	}
	if obs.RecordID != "" {
		fresh, err := c.store.SetNX(ctx, keySeenPrefix+obs.RecordID, 1, seenTTL).Result()
		if err != nil {
			return fmt.Errorf("mark record seen: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	increments := [][2]string{
		{keyDistribution, obs.Label},
		{keyByAge, groupField(AgeGroup(obs.UmurIbu), obs.Label)},
		{keyByGravida, groupField(GravidaGroup(obs.Gravida), obs.Label)},
	}
	if obs.CreatedBy != "" {
		increments = append(increments, [2]string{keyOwnerPrefix + obs.CreatedBy, obs.Label})
	}
	for i, inc := range increments {
		if err := c.store.HIncrBy(ctx, inc[0], inc[1], 1).Err(); err != nil {
			c.rollback(ctx, obs.RecordID, increments[:i])
			return fmt.Errorf("increment %s: %w", inc[0], err)
		}
	}
	return nil
}

// rollback undoes the increments already applied for a failed Record and
// clears the seen marker so a redelivered event is counted again.
func (c *RiskCounter) rollback(ctx context.Context, recordID string, applied [][2]string) {
	for _, inc := range applied {
		if err := c.store.HIncrBy(ctx, inc[0], inc[1], -1).Err(); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"key":   inc[0],
				"field": inc[1],
			}).Error("failed to roll back risk counter")
		}
	}
	if recordID == "" {
		return
	}
	if err := c.store.Del(ctx, keySeenPrefix+recordID).Err(); err != nil {
		logger.Log.WithError(err).WithField("record_id", recordID).Error("failed to clear seen marker")
	}
}

// Snapshot reads the global totals.
func (c *RiskCounter) Snapshot(ctx context.Context) (Summary, error) {
	dist, err := c.labelCounts(ctx, keyDistribution)
	if err != nil {
		return Summary{}, err
	}
	byAge, err := c.groupCounts(ctx, keyByAge, AgeGroups)
	if err != nil {
		return Summary{}, err
	}
	byGravida, err := c.groupCounts(ctx, keyByGravida, GravidaGroups)
	if err != nil {
		return Summary{}, err
	}
	total := 0
	for _, lc := range dist {
		total += lc.Count
	}
	return Summary{Total: total, Distribution: dist, ByAge: byAge, ByGravida: byGravida}, nil
}

// OwnerDistribution reads the label totals of records saved by one user.
func (c *RiskCounter) OwnerDistribution(ctx context.Context, owner string) ([]LabelCount, error) {
	return c.labelCounts(ctx, keyOwnerPrefix+owner)
}

// Reset clears the global totals. Per-owner hashes and seen markers are kept.
func (c *RiskCounter) Reset(ctx context.Context) error {
	return c.store.Del(ctx, keyDistribution, keyByAge, keyByGravida).Err()
}

// HandleEvent is a kafka.EventHandler. Events of other types are ignored.
func (c *RiskCounter) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != EventRiskPredicted {
		return nil
	}
	obs := Observation{
		RecordID:  stringField(event.Data, "record_id"),
		CreatedBy: stringField(event.Data, "created_by"),
		Label:     stringField(event.Data, models.ColHasilPrediksi),
		UmurIbu:   event.Data[models.ColUmurIbu],
		Gravida:   event.Data[models.ColGravida],
	}
	if err := c.Record(ctx, obs); err != nil {
		if errors.Is(err, errMissingLabel) {
			logger.Log.WithField("event_id", event.ID).Warn("skipping prediction event without label")
			return nil
		}
		return err
	}
	return nil
}

func (c *RiskCounter) labelCounts(ctx context.Context, key string) ([]LabelCount, error) {
	raw, err := c.store.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	counts := map[string]int{}
	for label, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		counts[label] = n
	}
	return orderedCounts(counts), nil
}

func (c *RiskCounter) groupCounts(ctx context.Context, key string, groups []string) ([]GroupCount, error) {
	raw, err := c.store.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	counts := map[[2]string]int{}
	for field, v := range raw {
		group, label, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		counts[[2]string{group, label}] = n
	}
	return groupCountsFor(groups, counts), nil
}

func groupField(group, label string) string {
	return group + "|" + label
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
