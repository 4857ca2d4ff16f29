package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// fileConfig mirrors Config for the YAML overlay. Unset fields keep their current value.
type fileConfig struct {
	Env    string `yaml:"env"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Driver      string `yaml:"driver"`
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Name        string `yaml:"name"`
		SQLitePath  string `yaml:"sqlite_path"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
	} `yaml:"database"`
	RabbitMQ struct {
		Enabled     *bool  `yaml:"enabled"`
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		SendQueue   string `yaml:"send_queue"`
		EventsQueue string `yaml:"events_queue"`
	} `yaml:"rabbitmq"`
	Dispatch struct {
		BatchSize       int    `yaml:"batch_size"`
		BatchDelay      string `yaml:"batch_delay"`
		AdHocBatchSize  int    `yaml:"adhoc_batch_size"`
		AdHocBatchDelay string `yaml:"adhoc_batch_delay"`
		SendTimeout     string `yaml:"send_timeout"`
		RatePerSec      int    `yaml:"rate_per_sec"`
	} `yaml:"dispatch"`
	Scheduler struct {
		Enabled      *bool  `yaml:"enabled"`
		PollInterval string `yaml:"poll_interval"`
		InitialDelay string `yaml:"initial_delay"`
	} `yaml:"scheduler"`
	Transport struct {
		SuccessRate *float64 `yaml:"success_rate"`
		MinLatency  string   `yaml:"min_latency"`
		MaxLatency  string   `yaml:"max_latency"`
	} `yaml:"transport"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func loadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}
	return fc.apply(c)
}

func (fc *fileConfig) apply(c *Config) error {
	setStr(&c.Env, fc.Env)
	setStr(&c.Server.Port, fc.Server.Port)

	setStr(&c.Database.Driver, strings.ToLower(fc.Database.Driver))
	setStr(&c.Database.Host, fc.Database.Host)
	setStr(&c.Database.Port, fc.Database.Port)
	setStr(&c.Database.User, fc.Database.User)
	setStr(&c.Database.Password, fc.Database.Password)
	setStr(&c.Database.DBName, fc.Database.Name)
	setStr(&c.Database.SQLitePath, fc.Database.SQLitePath)
	if fc.Database.AutoMigrate != nil {
		c.Database.AutoMigrate = *fc.Database.AutoMigrate
	}

	if fc.RabbitMQ.Enabled != nil {
		c.RabbitMQ.Enabled = *fc.RabbitMQ.Enabled
	}
	setStr(&c.RabbitMQ.Host, fc.RabbitMQ.Host)
	setStr(&c.RabbitMQ.Port, fc.RabbitMQ.Port)
	setStr(&c.RabbitMQ.User, fc.RabbitMQ.User)
	setStr(&c.RabbitMQ.Password, fc.RabbitMQ.Password)
	setStr(&c.RabbitMQ.SendQueue, fc.RabbitMQ.SendQueue)
	setStr(&c.RabbitMQ.EventsQueue, fc.RabbitMQ.EventsQueue)

	setInt(&c.Dispatch.BatchSize, fc.Dispatch.BatchSize)
	setInt(&c.Dispatch.AdHocBatchSize, fc.Dispatch.AdHocBatchSize)
	setInt(&c.Dispatch.RatePerSec, fc.Dispatch.RatePerSec)

	if fc.Scheduler.Enabled != nil {
		c.Scheduler.Enabled = *fc.Scheduler.Enabled
	}
	if fc.Transport.SuccessRate != nil {
		c.Transport.SuccessRate = *fc.Transport.SuccessRate
	}

	setStr(&c.Log.Level, fc.Log.Level)
	setStr(&c.Log.Format, fc.Log.Format)

	durations := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"dispatch.batch_delay", fc.Dispatch.BatchDelay, &c.Dispatch.BatchDelay},
		{"dispatch.adhoc_batch_delay", fc.Dispatch.AdHocBatchDelay, &c.Dispatch.AdHocBatchDelay},
		{"dispatch.send_timeout", fc.Dispatch.SendTimeout, &c.Dispatch.SendTimeout},
		{"scheduler.poll_interval", fc.Scheduler.PollInterval, &c.Scheduler.PollInterval},
		{"scheduler.initial_delay", fc.Scheduler.InitialDelay, &c.Scheduler.InitialDelay},
		{"transport.min_latency", fc.Transport.MinLatency, &c.Transport.MinLatency},
		{"transport.max_latency", fc.Transport.MaxLatency, &c.Transport.MaxLatency},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := ParseDurationField(d.path, d.raw)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	return nil
}

func setStr(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
