package config

import (
	"errors"
	"fmt"
	"os"

	"matcher/internal/common"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Engine struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"engine"`
	Demo struct {
		// Orders seed the book before the first render.
		Orders []OrderConfig `yaml:"orders"`
		// Sweep is processed afterwards and its trades printed.
		Sweep []OrderConfig `yaml:"sweep"`
	} `yaml:"demo"`
}

type OrderConfig struct {
	ID       int64  `yaml:"id"`
	Side     string `yaml:"side"`
	Price    int64  `yaml:"price"`
	Quantity int64  `yaml:"quantity"`
}

// Order converts the entry. Price and quantity are left to the book to reject.
func (o OrderConfig) Order() (common.Order, error) {
	side, err := common.ParseSide(o.Side)
	if err != nil {
		return common.Order{}, fmt.Errorf("order %d: %w", o.ID, err)
	}
	return common.Order{
		ID:       o.ID,
		Side:     side,
		Price:    o.Price,
		Quantity: o.Quantity,
	}, nil
}

func Default() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = true
	c.Engine.QueueSize = 100
	c.Demo.Orders = []OrderConfig{
		{ID: 1, Side: "buy", Price: 100, Quantity: 1},
		{ID: 2, Side: "buy", Price: 100, Quantity: 2},
		{ID: 3, Side: "buy", Price: 99, Quantity: 1},
		{ID: 4, Side: "buy", Price: 99, Quantity: 2},
		{ID: 5, Side: "buy", Price: 99, Quantity: 3},
		{ID: 6, Side: "buy", Price: 98, Quantity: 3},
		{ID: 7, Side: "sell", Price: 101, Quantity: 3},
		{ID: 8, Side: "sell", Price: 102, Quantity: 5},
	}
	c.Demo.Sweep = []OrderConfig{
		{ID: 9, Side: "sell", Price: 99, Quantity: 5},
	}
	return c
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("%w: engine.queue_size must be positive, got %d", ErrInvalidConfig, c.Engine.QueueSize)
	}
	for _, orders := range [][]OrderConfig{c.Demo.Orders, c.Demo.Sweep} {
		for _, o := range orders {
			if _, err := o.Order(); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
		}
	}
	return nil
}
