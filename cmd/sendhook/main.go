// Command sendhook periodically posts a plain webhook message to a hook
// endpoint. Useful for smoke testing a running server end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/notifico/notifico/pkg/hookclient"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	interval, _ := time.ParseDuration(cfg.Interval)

	client := hookclient.Client{BaseURL: cfg.BaseURL}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		seq++
		body := hookclient.Message{
			Message: cfg.Message,
			Detail:  map[string]string{"sequence": fmt.Sprintf("%d", seq)},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := client.Send(ctx, cfg.ProjectID, cfg.Key, body); err != nil {
			fmt.Fprintln(os.Stderr, "send error:", err)
		} else {
			fmt.Printf("delivered message %d to project %d\n", seq, cfg.ProjectID)
		}
		cancel()
		<-ticker.C
	}
}

func loadConfig(path string) (config, error) {
	if strings.TrimSpace(path) == "" {
		return config{}, fmt.Errorf("config path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Key = strings.TrimSpace(cfg.Key)
	cfg.Message = strings.TrimSpace(cfg.Message)
	cfg.Interval = strings.TrimSpace(cfg.Interval)

	if cfg.BaseURL == "" || cfg.Key == "" || cfg.Message == "" {
		return config{}, fmt.Errorf("config must include base_url, key, message")
	}
	if cfg.ProjectID <= 0 {
		return config{}, fmt.Errorf("project_id must be positive")
	}
	if cfg.Interval == "" {
		return config{}, fmt.Errorf("interval must be provided")
	}

	parsed, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return config{}, fmt.Errorf("invalid interval duration: %w", err)
	}
	if parsed <= 0 {
		return config{}, fmt.Errorf("interval must be positive")
	}

	return cfg, nil
}
