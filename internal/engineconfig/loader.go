package engineconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/confluence/backend/pkg/config"
)

// Load reads a YAML file over the defaults and returns the Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if err := decodeInto(cfg, data); err != nil {
		return nil, data, err
	}

	if err := Validate(cfg); err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

// Parse decodes YAML bytes over the defaults (tests, inline config)
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, data); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeInto(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode engine config: %w", err)
	}
	return nil
}

// Resolve builds the effective engine config: defaults, then environment,
// then the YAML file named by ENGINE_CONFIG (if any)
func Resolve(app *config.Config) (*Config, error) {
	cfg := Default()

	e := app.Engine
	if e.ScanInterval > 0 {
		cfg.Scan.Interval = e.ScanInterval
	}
	if e.LayerTimeout > 0 {
		cfg.Scan.LayerTimeout = e.LayerTimeout
	}
	if len(e.Symbols) > 0 {
		cfg.Scan.Symbols = append([]string(nil), e.Symbols...)
	}
	if e.MaxHolding > 0 {
		cfg.Signals.MaxHolding = e.MaxHolding
	}
	if e.StopPolicy != "" {
		cfg.Signals.StopPolicy = e.StopPolicy
	}
	if app.Calendar.BlackoutWindow > 0 {
		cfg.Layers.NewsBlackout = app.Calendar.BlackoutWindow
	}

	if e.ConfigPath != "" {
		data, err := os.ReadFile(e.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read engine config: %w", err)
		}
		if err := decodeInto(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
