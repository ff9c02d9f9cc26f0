package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-renderlink"
	"github.com/goliatone/go-renderlink/params"
)

// loadConfig reads a YAML config over the defaults. An empty path returns
// the defaults.
func loadConfig(path string) (renderlink.Config, error) {
	cfg := renderlink.DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// apply layers non-empty flag values over cfg.
func (g Globals) apply(cfg renderlink.Config) renderlink.Config {
	if v := strings.TrimSpace(g.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(g.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(g.APISecret); v != "" {
		cfg.APISecret = v
	}
	if v := strings.TrimSpace(g.WebhookSecret); v != "" {
		cfg.Webhook.Secret = v
	}
	if g.SignLinks {
		cfg.SignLinks = true
	}
	return cfg
}

// parseParams turns name=value pairs into a bag. Repeated names collect into
// a list; true/false become booleans and numeric text becomes a number.
func parseParams(target string, pairs []string) (*params.Bag, error) {
	bag := params.NewBag()
	if target = strings.TrimSpace(target); target != "" {
		if strings.HasPrefix(target, "<") {
			bag.Set("HTML", params.String(target))
		} else {
			bag.Set("URL", params.String(target))
		}
	}

	lists := map[string][]string{}
	var order []string
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must be name=value", pair)
		}
		if _, seen := lists[name]; !seen {
			order = append(order, name)
		}
		lists[name] = append(lists[name], raw)
	}

	for _, name := range order {
		values := lists[name]
		if len(values) > 1 {
			bag.Set(name, params.List(values...))
			continue
		}
		bag.Set(name, scalar(values[0]))
	}
	return bag, nil
}

func scalar(raw string) params.Value {
	switch strings.ToLower(raw) {
	case "true":
		return params.Bool(true)
	case "false":
		return params.Bool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return params.Int(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return params.Float(f)
	}
	return params.String(raw)
}
