package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hawkmon/internal/models"
)

// Client talks to the Docker Engine API over its unix socket.
type Client struct {
	http *http.Client
}

type ContainerSummary struct {
	ID    string   `json:"Id"`
	Names []string `json:"Names"`
}

type Stats struct {
	CPUStats struct {
		CPUUsage struct {
			TotalUsage  uint64   `json:"total_usage"`
			PercpuUsage []uint64 `json:"percpu_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs     uint64 `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64            `json:"usage"`
		Limit uint64            `json:"limit"`
		Stats map[string]uint64 `json:"stats"`
	} `json:"memory_stats"`
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 3 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{http: &http.Client{Transport: transport, Timeout: 30 * time.Second}}
}

// Name is the container name without the leading slash the API reports.
func (c ContainerSummary) Name() string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/_ping")
	return err
}

// ListContainers returns running containers only; stopped ones have no stats.
func (c *Client) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	b, err := c.get(ctx, "/containers/json")
	if err != nil {
		return nil, err
	}
	var out []ContainerSummary
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, id string) (Stats, error) {
	b, err := c.get(ctx, "/containers/"+id+"/stats?stream=false&one-shot=false")
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	if err := json.Unmarshal(b, &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// statsConcurrency bounds parallel stats calls; each takes about a second
// because the daemon waits for a second CPU reading.
const statsConcurrency = 8

// Usage lists running containers and normalizes their stats, fetched in
// parallel. Containers whose stats call fails are left out and their errors
// joined into the result.
func (c *Client) Usage(ctx context.Context) ([]models.ContainerUsage, error) {
	containers, err := c.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*models.ContainerUsage, len(containers))
	errs := make([]error, len(containers))
	var g errgroup.Group
	g.SetLimit(statsConcurrency)
	for i, ct := range containers {
		g.Go(func() error {
			st, err := c.Stats(ctx, ct.ID)
			if err != nil {
				errs[i] = fmt.Errorf("stats %s: %w", ct.Name(), err)
				return nil
			}
			u := NormalizeStats(ct.ID, ct.Name(), st)
			results[i] = &u
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ContainerUsage, 0, len(containers))
	for _, u := range results {
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, errors.Join(errs...)
}

func (c *Client) get(ctx context.Context, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+p, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = res.Status
		}
		return nil, fmt.Errorf("docker api GET %s failed: %s", p, msg)
	}
	return b, nil
}
