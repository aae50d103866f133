package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadInto decodes <dir>/base.yaml overlaid with <dir>/<env>.yaml into out
// (a pointer). ${VAR} placeholders resolve from <dir>/secrets.env first,
// then the process environment; unresolved ones become empty. Keys absent
// from both files leave out's fields untouched.
func LoadInto(env string, configDir string, out interface{}) error {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := readYAML(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return fmt.Errorf("failed to load base.yaml: %w", err)
	}
	if env != "" && env != "base" {
		overlay, err := readYAML(filepath.Join(configDir, env+".yaml"))
		switch {
		case err == nil:
			merged = mergeMaps(merged, overlay)
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to load %s.yaml: %w", env, err)
		}
	}

	secrets, err := readEnvFile(filepath.Join(configDir, "secrets.env"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load secrets.env: %w", err)
	}
	lookup := func(name string) string {
		if v, ok := secrets[name]; ok {
			return v
		}
		return os.Getenv(name)
	}

	// 通过 yaml 重新编码，复用结构体上的 yaml tag
	data, err := yaml.Marshal(substitute(merged, lookup))
	if err != nil {
		return fmt.Errorf("failed to re-encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode merged config: %w", err)
	}
	return nil
}

func readYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// readEnvFile 读取 KEY=VALUE 行，忽略空行和 # 注释
func readEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			env[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}
	return env, nil
}

// mergeMaps returns base overlaid with over; nested maps merge key by key.
func mergeMaps(base, over map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		bm, ok1 := out[k].(map[string]interface{})
		om, ok2 := v.(map[string]interface{})
		if ok1 && ok2 {
			out[k] = mergeMaps(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}

func substitute(v interface{}, lookup func(string) string) interface{} {
	switch val := v.(type) {
	case string:
		return placeholder.ReplaceAllStringFunc(val, func(m string) string {
			return lookup(placeholder.FindStringSubmatch(m)[1])
		})
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, x := range val {
			out[k] = substitute(x, lookup)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, x := range val {
			out[i] = substitute(x, lookup)
		}
		return out
	default:
		return v
	}
}

// GetConfigEnv 配置环境，取 CONFIG_ENV，默认 local
func GetConfigEnv() string {
	if env := os.Getenv("CONFIG_ENV"); env != "" {
		return env
	}
	return "local"
}
