package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice describes a completed award.
type Notice struct {
	VacancyIDs   []string  `json:"vacancy_ids"`
	EmployeeID   string    `json:"employee_id"`
	Reason       string    `json:"reason,omitempty"`
	OverrideUsed bool      `json:"override_used"`
	AwardedAt    time.Time `json:"awarded_at"`
}

// Notifier delivers award notices. Delivery is best-effort; the award has
// already been committed when it is called.
type Notifier interface {
	NotifyAward(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to the process log.
type LogNotifier struct{}

func (LogNotifier) NotifyAward(_ context.Context, n Notice) error {
	log.Printf("notify: award employee=%s vacancies=%s override=%v", n.EmployeeID, strings.Join(n.VacancyIDs, ","), n.OverrideUsed)
	return nil
}

// RedisNotifier pushes notices as JSON onto a Redis list for an outbound
// messaging worker to drain.
type RedisNotifier struct {
	client *redis.Client
	list   string
}

func NewRedisNotifier(client *redis.Client, list string) *RedisNotifier {
	return &RedisNotifier{client: client, list: list}
}

func (r *RedisNotifier) NotifyAward(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := r.client.RPush(ctx, r.list, body).Err(); err != nil {
		return fmt.Errorf("push notice: %w", err)
	}
	return nil
}

// Peek decodes up to count of the oldest queued notices without removing
// them. The outbound messaging integration owns consumption of the list.
func (r *RedisNotifier) Peek(ctx context.Context, count int64) ([]Notice, error) {
	raw, err := r.client.LRange(ctx, r.list, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("peek notices: %w", err)
	}
	out := make([]Notice, 0, len(raw))
	for _, item := range raw {
		var n Notice
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode notice: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Depth returns the number of notices waiting on the list.
func (r *RedisNotifier) Depth(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.list).Result()
	if err != nil {
		return 0, fmt.Errorf("notice depth: %w", err)
	}
	return n, nil
}
