package storex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// restTransport is the request/response transport. It speaks the Upstash REST
// protocol: each command is POSTed as a JSON array and answered with either
// {"result": ...} or {"error": "..."}.
type restTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

func newRestTransport(baseURL, token string) *restTransport {
	return &restTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type restResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (t *restTransport) do(ctx context.Context, command ...any) (json.RawMessage, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed restResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("malformed store response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("store command error: %s", parsed.Error)
	}
	return parsed.Result, nil
}

// resultString decodes a string result. A JSON null means "no value".
func resultString(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}

func resultStrings(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *restTransport) Ping(ctx context.Context) error {
	_, err := t.do(ctx, "PING")
	return err
}

func (t *restTransport) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		_, err := t.do(ctx, "SET", key, value, "EX", int64(ttl.Seconds()))
		return err
	}
	_, err := t.do(ctx, "SET", key, value)
	return err
}

func (t *restTransport) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := t.do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	return resultString(raw)
}

func (t *restTransport) Del(ctx context.Context, key string) error {
	_, err := t.do(ctx, "DEL", key)
	return err
}

func (t *restTransport) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := t.do(ctx, "EXPIRE", key, int64(ttl.Seconds()))
	return err
}

func (t *restTransport) Publish(ctx context.Context, channel, payload string) error {
	_, err := t.do(ctx, "PUBLISH", channel, payload)
	return err
}

func (t *restTransport) Push(ctx context.Context, key string, values ...string) error {
	command := make([]any, 0, len(values)+2)
	command = append(command, "RPUSH", key)
	for _, v := range values {
		command = append(command, v)
	}
	_, err := t.do(ctx, command...)
	return err
}

func (t *restTransport) Pop(ctx context.Context, key string) (string, bool, error) {
	raw, err := t.do(ctx, "LPOP", key)
	if err != nil {
		return "", false, err
	}
	return resultString(raw)
}

func (t *restTransport) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	raw, err := t.do(ctx, "LRANGE", key, start, stop)
	if err != nil {
		return nil, err
	}
	return resultStrings(raw)
}

func (t *restTransport) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_, err := t.do(ctx, "ZADD", key, score, member)
	return err
}

func (t *restTransport) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	raw, err := t.do(ctx, "ZRANGE", key, start, stop)
	if err != nil {
		return nil, err
	}
	return resultStrings(raw)
}

func (t *restTransport) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	raw, err := t.do(ctx, "ZRANGE", key, start, stop, "WITHSCORES")
	if err != nil {
		return nil, err
	}
	// WITHSCORES flattens to [member, score, member, score, ...]
	flat, err := resultStrings(raw)
	if err != nil {
		return nil, err
	}
	members := make([]ZMember, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad score %q for member %q: %w", flat[i+1], flat[i], err)
		}
		members = append(members, ZMember{Member: flat[i], Score: score})
	}
	return members, nil
}

func (t *restTransport) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	_, err := t.do(ctx, "ZREMRANGEBYRANK", key, start, stop)
	return err
}

func (t *restTransport) Keys(ctx context.Context, pattern string) ([]string, error) {
	raw, err := t.do(ctx, "KEYS", pattern)
	if err != nil {
		return nil, err
	}
	return resultStrings(raw)
}
