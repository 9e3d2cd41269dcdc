/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hyperterse

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// redisConnector is the Connector implementation for adapters declared
// with connector: redis, grounded on
// original_source/connectors/redis.rs (redis::cmd passthrough). go-redis's
// client already manages reconnection internally, matching the source's
// ConnectionManager.
type redisConnector struct {
	client *redis.Client
}

func newRedisConnector(ctx context.Context, url string) (*redisConnector, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errRedis("invalid redis url: " + err.Error())
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errRedis("redis connection failed: " + err.Error())
	}
	return &redisConnector{client: client}, nil
}

func (c *redisConnector) execute(ctx context.Context, statement string, _ map[string]any) ([]Row, error) {
	parts := strings.Fields(statement)
	if len(parts) == 0 {
		return nil, errRedis("empty redis command")
	}
	args := make([]any, len(parts))
	for i, p := range parts {
		args[i] = p
	}

	result, err := c.client.Do(ctx, args...).Result()
	if err != nil && err != redis.Nil {
		return nil, errRedis("redis command failed: " + err.Error())
	}
	if err == redis.Nil {
		result = nil
	}

	return []Row{{"result": redisValueToJSON(result)}}, nil
}

// redisValueToJSON converts a go-redis reply into a JSON-compatible
// value: bulk-string→string, integer→number, array→array, status/OK
// string→string, nil→null, per §4.4.
func redisValueToJSON(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = redisValueToJSON(el)
		}
		return out
	case []byte:
		return string(t)
	default:
		return t
	}
}

func (c *redisConnector) close(_ context.Context) error {
	return c.client.Close()
}

func (c *redisConnector) healthCheck(ctx context.Context) error {
	pong, err := c.client.Ping(ctx).Result()
	if err != nil {
		return errRedis("redis health check failed: " + err.Error())
	}
	if pong != "PONG" {
		return errRedis("unexpected PING response: " + pong)
	}
	return nil
}

func (c *redisConnector) kind() Connector {
	return ConnectorRedis
}
